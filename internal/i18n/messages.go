// Package i18n holds the localized user-facing messages for error codes.
package i18n

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"faceswap/internal/domain"
)

var (
	English    = language.English
	Indonesian = language.Indonesian

	supported = []language.Tag{English, Indonesian}
	matcher   = language.NewMatcher(supported)
	messages  = buildCatalog()
)

type entry struct {
	key string
	en  string
	id  string
}

var entries = []entry{
	{domain.CodeValidation, "The request is invalid.", "Permintaan tidak valid."},
	{domain.CodeProviderTransient, "The generation service is busy. Please try again shortly.", "Layanan sedang sibuk. Silakan coba lagi sebentar lagi."},
	{domain.CodeProviderTimeout, "Generation took too long. Please try again.", "Proses terlalu lama. Silakan coba lagi."},
	{domain.CodeProviderFailure, "Generation failed. Please try again.", "Gagal membuat gambar. Silakan coba lagi."},
	{domain.CodeDownloadFailed, "The result could not be retrieved. Your credits were returned.", "Hasil tidak dapat diambil. Kredit Anda telah dikembalikan."},
	{domain.CodeInsufficientCredits, "You do not have enough credits.", "Kredit Anda tidak cukup."},
	{domain.CodeNotFound, "Task not found or expired.", "Tugas tidak ditemukan atau sudah kedaluwarsa."},
	{domain.CodeUnauthorized, "Please sign in again.", "Silakan masuk kembali."},
	{domain.CodeTokenExpired, "Your session has expired.", "Sesi Anda telah berakhir."},
	{domain.CodeForbidden, "You are not allowed to do that.", "Anda tidak diizinkan melakukan itu."},
	{domain.CodeInternal, "Something went wrong.", "Terjadi kesalahan."},
	{rejectionKey(domain.RejectionMinor), "This content can't be processed because it appears to involve a minor.", "Konten ini tidak dapat diproses karena tampaknya melibatkan anak di bawah umur."},
	{rejectionKey(domain.RejectionCelebrity), "This content can't be processed because it appears to show a public figure.", "Konten ini tidak dapat diproses karena tampaknya menampilkan tokoh publik."},
	{rejectionKey(domain.RejectionExplicit), "This content was blocked because it appears to be explicit.", "Konten ini diblokir karena tampaknya bersifat eksplisit."},
	{rejectionKey(domain.RejectionOther), "This content was blocked by the safety filter.", "Konten ini diblokir oleh filter keamanan."},
	{"insufficient_credits.detail", "%d credits needed, %d available.", "Dibutuhkan %d kredit, tersedia %d."},
}

func rejectionKey(reason domain.RejectionReason) string {
	return domain.CodeContentRejected + "." + string(reason)
}

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(English))
	for _, e := range entries {
		_ = b.SetString(English, e.key, e.en)
		_ = b.SetString(Indonesian, e.key, e.id)
	}
	return b
}

// Match picks the supported language for a locale string such as "id-ID"
// or an Accept-Language header value.
func Match(locale string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(strings.TrimSpace(locale))
	if err != nil || len(tags) == 0 {
		return English
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return English
	}
	return supported[idx]
}

// Code returns the short locale code ("en" or "id") for locale.
func Code(locale string) string {
	base, _ := Match(locale).Base()
	return base.String()
}

func printer(locale string) *message.Printer {
	return message.NewPrinter(Match(locale), message.Catalog(messages))
}

// UserMessage returns the localized text for an error code. Content
// rejections are phrased per reason.
func UserMessage(locale, code string, reason domain.RejectionReason) string {
	key := code
	if code == domain.CodeContentRejected {
		if reason == "" {
			reason = domain.RejectionOther
		}
		key = rejectionKey(reason)
	}
	if !known(key) {
		key = domain.CodeInternal
	}
	return printer(locale).Sprintf(key)
}

// ErrorMessage localizes err.
func ErrorMessage(locale string, err error) string {
	var insufficient *domain.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		p := printer(locale)
		return p.Sprintf(domain.CodeInsufficientCredits) + " " +
			p.Sprintf("insufficient_credits.detail", insufficient.Required, insufficient.Available)
	}
	var rejection *domain.ContentRejectionError
	if errors.As(err, &rejection) {
		return UserMessage(locale, domain.CodeContentRejected, rejection.Reason)
	}
	return UserMessage(locale, domain.ErrorCode(err), "")
}

func known(key string) bool {
	for _, e := range entries {
		if e.key == key {
			return true
		}
	}
	return false
}
