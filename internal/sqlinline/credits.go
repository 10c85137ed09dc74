package sqlinline

const QSelectUserCredits = `--sql ccaf3d65-1303-4b4e-85c8-df25502a3d2f
select user_id, remain_count, updated_at
from user_credits
where user_id = $1::text
limit 1;
`

const QEnsureUserCredits = `--sql 461e6bf5-6e08-45bb-94aa-8f4d65e847a1
with inserted as (
    insert into user_credits (user_id, remain_count, created_at, updated_at)
    values ($1::text, $2::int, now(), now())
    on conflict (user_id) do nothing
    returning user_id, remain_count, updated_at
)
select user_id, remain_count, updated_at from inserted
union all
select user_id, remain_count, updated_at from user_credits where user_id = $1::text
limit 1;
`

const QInsertCreditEntry = `--sql 4f10f2ed-135b-48a6-8a61-6aff7a2feeb4
insert into credit_history (id, user_join, uses, count, created_at)
values ($1::uuid, $2::text, $3::text, $4::int, $5::timestamptz);
`

const QUpdateRemainCount = `--sql dd908597-bd6f-4d11-bdc1-08fe3eee7652
update user_credits
set remain_count = $2::int,
    updated_at = now()
where user_id = $1::text;
`
