// Package validator checks request structs against their `validate` tags and
// reports failures by JSON field name, in English or Chinese.
package validator

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Supported message languages.
const (
	LangEN = "en"
	LangZH = "zh"
)

// Tags registered on top of the built-in rules.
const (
	// TagDocumentID accepts identifiers such as "msa-2024" or "contracts/nda:v2".
	TagDocumentID = "docid"
	// TagChunkType accepts a letter followed by letters or underscores.
	TagChunkType = "chunktype"
)

// rule is a pattern tag with its message per language.
type rule struct {
	tag      string
	pattern  *regexp.Regexp
	messages map[string]string
}

var rules = []rule{
	{
		tag:     TagDocumentID,
		pattern: regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:/-]{0,127}$`),
		messages: map[string]string{
			LangEN: "{0} must be a valid document id",
			LangZH: "{0}必须是有效的文档 ID",
		},
	},
	{
		tag:     TagChunkType,
		pattern: regexp.MustCompile(`^[A-Za-z][A-Za-z_]{0,31}$`),
		messages: map[string]string{
			LangEN: "{0} must be a valid chunk type",
			LangZH: "{0}必须是有效的分块类型",
		},
	},
}

// Validator is safe for concurrent use once built.
type Validator struct {
	validate *validator.Validate
	trans    map[string]ut.Translator
}

var (
	global     *Validator
	globalOnce sync.Once
)

// Global returns the process-wide Validator.
func Global() *Validator {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// New builds a Validator with English and Chinese translations and the
// document id and chunk type rules.
func New() *Validator {
	v := &Validator{
		validate: validator.New(),
		trans:    make(map[string]ut.Translator, 2),
	}
	v.validate.RegisterTagNameFunc(jsonFieldName)

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())
	v.trans[LangEN], _ = uni.GetTranslator(LangEN)
	v.trans[LangZH], _ = uni.GetTranslator(LangZH)
	_ = en_translations.RegisterDefaultTranslations(v.validate, v.trans[LangEN])
	_ = zh_translations.RegisterDefaultTranslations(v.validate, v.trans[LangZH])

	for _, r := range rules {
		v.register(r)
	}
	return v
}

// ValidateWithLang returns nil when s passes, otherwise the failures with
// messages in lang. Unknown languages fall back to English.
func (v *Validator) ValidateWithLang(s any, lang string) *ValidationErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ValidationErrors{Errors: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	trans := v.translator(lang)
	out := &ValidationErrors{Errors: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Errors = append(out.Errors, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   fe.Value(),
			Param:   fe.Param(),
			Message: fe.Translate(trans),
		})
	}
	return out
}

func (v *Validator) translator(lang string) ut.Translator {
	if trans, ok := v.trans[lang]; ok {
		return trans
	}
	return v.trans[LangEN]
}

func (v *Validator) register(r rule) {
	pattern := r.pattern
	_ = v.validate.RegisterValidation(r.tag, func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		// 空值交给 required 处理
		return value == "" || pattern.MatchString(value)
	})
	tag := r.tag
	for lang, message := range r.messages {
		_ = v.validate.RegisterTranslation(tag, v.translator(lang),
			func(t ut.Translator) error {
				return t.Add(tag, message, true)
			},
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T(tag, fe.Field())
				return msg
			},
		)
	}
}

// jsonFieldName reports fields by their json tag, then form tag, then Go name.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		name, _, _ = strings.Cut(fld.Tag.Get("form"), ",")
	}
	if name == "" {
		return fld.Name
	}
	return name
}
