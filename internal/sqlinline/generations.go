package sqlinline

const QInsertGeneration = `--sql 3b80d1cd-2a63-4ddc-b65d-a6d77d7e9297
insert into generations (id, user_id, type, original_url, result_url, prompt, clothing_prompt, method, credits, created_at, expires_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text, $8::text, $9::int, $10::timestamptz, $11::timestamptz);
`

const QListActiveGenerations = `--sql 0f28771b-0853-4de3-b6cd-1006ca4ca405
select id, user_id, type, original_url, result_url, prompt, clothing_prompt, method, credits, created_at, expires_at
from generations
where user_id = $1::text
  and expires_at > $2::timestamptz
order by created_at desc
limit $3::int;
`

const QDeleteExpiredGenerationsForUser = `--sql df11ff0e-bb02-449c-9956-8a2063a57278
delete from generations
where user_id = $1::text
  and expires_at <= $2::timestamptz;
`

const QDeleteExpiredGenerations = `--sql 9e8f1750-82bf-4de0-9e9b-469975bf458f
delete from generations
where expires_at <= $1::timestamptz;
`
