package i18n

import "context"

type localeKey struct{}

type translatorKey struct{}

// WithLocale stores the negotiated locale in ctx.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// GetLocale returns the locale stored by WithLocale, or "".
func GetLocale(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	locale, _ := ctx.Value(localeKey{}).(string)
	return locale
}

// WithTranslator stores a translator in ctx.
func WithTranslator(ctx context.Context, translator Translator) context.Context {
	return context.WithValue(ctx, translatorKey{}, translator)
}

// TranslatorFromContext returns the request translator. Without one, keys translate to themselves.
func TranslatorFromContext(ctx context.Context) Translator {
	if ctx == nil {
		return fallbackTranslator{}
	}
	translator, _ := ctx.Value(translatorKey{}).(Translator)
	if translator == nil {
		return fallbackTranslator{}
	}
	return translator
}

type fallbackTranslator struct{}

func (fallbackTranslator) T(key string, _ ...any) string {
	return key
}
