// Package languages is the static language support table: display names, the set of
// languages accepted for transcription, and the set offered as translation targets.
package languages

import (
	"fmt"
	"regexp"
	"strings"
)

type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ValidationError carries a user-facing message explaining why a language was rejected.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

const (
	undetectedMessage  = "We couldn't detect the language in your audio. Please ensure the file contains clear speech and try again."
	unsupportedMessage = "Sorry, %q is not currently supported. We support 98+ languages including English, Spanish, French, German, Chinese, Japanese, and more."
	badTargetMessage   = "Translation to %q is not currently supported."
)

var names = map[string]string{
	"en": "English", "zh": "Chinese", "de": "German", "es": "Spanish",
	"ru": "Russian", "ko": "Korean", "fr": "French", "ja": "Japanese",
	"pt": "Portuguese", "tr": "Turkish", "pl": "Polish", "nl": "Dutch",
	"ar": "Arabic", "sv": "Swedish", "it": "Italian", "id": "Indonesian",
	"hi": "Hindi", "fi": "Finnish", "vi": "Vietnamese", "he": "Hebrew",
	"uk": "Ukrainian", "el": "Greek", "ms": "Malay", "cs": "Czech",
	"ro": "Romanian", "da": "Danish", "hu": "Hungarian", "ta": "Tamil",
	"no": "Norwegian", "th": "Thai", "ur": "Urdu", "hr": "Croatian",
	"bg": "Bulgarian", "lt": "Lithuanian", "la": "Latin", "cy": "Welsh",
	"sk": "Slovak", "te": "Telugu", "fa": "Persian", "bn": "Bengali",
	"sr": "Serbian", "sl": "Slovenian", "sw": "Swahili", "ka": "Georgian",
	"be": "Belarusian", "gu": "Gujarati", "am": "Amharic", "yi": "Yiddish",
	"lo": "Lao", "uz": "Uzbek", "fo": "Faroese", "ht": "Haitian Creole",
	"ps": "Pashto", "tk": "Turkmen", "nn": "Norwegian Nynorsk", "mt": "Maltese",
	"sa": "Sanskrit", "lb": "Luxembourgish", "my": "Myanmar", "bo": "Tibetan",
	"tl": "Tagalog", "mg": "Malagasy", "as": "Assamese", "tt": "Tatar",
	"haw": "Hawaiian", "ln": "Lingala", "ha": "Hausa", "ba": "Bashkir",
	"jw": "Javanese", "su": "Sundanese", "yue": "Cantonese",
	"ca": "Catalan", "ml": "Malayalam", "kn": "Kannada", "et": "Estonian",
	"mk": "Macedonian", "br": "Breton", "eu": "Basque", "is": "Icelandic",
	"hy": "Armenian", "ne": "Nepali", "mn": "Mongolian", "bs": "Bosnian",
	"kk": "Kazakh", "sq": "Albanian", "gl": "Galician", "mr": "Marathi",
	"pa": "Punjabi", "si": "Sinhala", "km": "Khmer", "sn": "Shona",
	"yo": "Yoruba", "so": "Somali", "af": "Afrikaans", "oc": "Occitan",
	"tg": "Tajik", "sd": "Sindhi", "az": "Azerbaijani", "lv": "Latvian",
}

var supported = toSet([]string{
	"en", "zh", "de", "es", "ru", "ko", "fr", "ja", "pt", "tr",
	"pl", "ca", "nl", "ar", "sv", "it", "id", "hi", "fi", "vi",
	"he", "uk", "el", "ms", "cs", "ro", "da", "hu", "ta", "no",
	"th", "ur", "hr", "bg", "lt", "la", "ml", "cy", "sk",
	"te", "fa", "lv", "bn", "sr", "az", "sl", "kn", "et", "mk",
	"br", "eu", "is", "hy", "ne", "mn", "bs", "kk", "sq", "sw",
	"gl", "mr", "pa", "si", "km", "sn", "yo", "so", "af", "oc",
	"ka", "be", "tg", "sd", "gu", "am", "yi", "lo", "uz", "fo",
	"ht", "ps", "tk", "nn", "mt", "sa", "lb", "my", "bo", "tl",
	"mg", "as", "tt", "haw", "ln", "ha", "ba", "jw", "su", "yue",
})

var translationTargets = []Language{
	{"en", "English"}, {"es", "Spanish"}, {"fr", "French"}, {"de", "German"},
	{"it", "Italian"}, {"pt", "Portuguese"}, {"nl", "Dutch"}, {"ru", "Russian"},
	{"zh", "Chinese (Simplified)"}, {"ja", "Japanese"}, {"ko", "Korean"}, {"ar", "Arabic"},
	{"hi", "Hindi"}, {"tr", "Turkish"}, {"pl", "Polish"}, {"sv", "Swedish"},
	{"da", "Danish"}, {"fi", "Finnish"}, {"no", "Norwegian"}, {"cs", "Czech"},
	{"ro", "Romanian"}, {"hu", "Hungarian"}, {"el", "Greek"}, {"he", "Hebrew"},
	{"th", "Thai"}, {"vi", "Vietnamese"}, {"id", "Indonesian"}, {"ms", "Malay"},
	{"uk", "Ukrainian"}, {"bg", "Bulgarian"}, {"hr", "Croatian"}, {"sk", "Slovak"},
	{"sl", "Slovenian"}, {"sr", "Serbian"}, {"bn", "Bengali"}, {"ta", "Tamil"},
	{"te", "Telugu"}, {"ur", "Urdu"}, {"fa", "Persian"}, {"sw", "Swahili"},
	{"tl", "Filipino"},
}

// codesByName lets provider output such as "english" resolve to "en".
var codesByName = func() map[string]string {
	m := make(map[string]string, len(names))
	for code, name := range names {
		m[strings.ToLower(name)] = code
	}
	return m
}()

var nonAlpha = regexp.MustCompile("[^a-z ]+")

func toSet(codes []string) map[string]struct{} {
	m := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		m[c] = struct{}{}
	}
	return m
}

// Normalize turns a provider-reported language into a code. Known codes pass through,
// English display names map to their code, anything else is returned lower-cased.
func Normalize(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return ""
	}
	if _, ok := names[lower]; ok {
		return lower
	}
	if code, ok := codesByName[strings.TrimSpace(nonAlpha.ReplaceAllString(lower, ""))]; ok {
		return code
	}
	return lower
}

// Name returns the display name for code, or the code itself when unknown.
func Name(code string) string {
	if name, ok := names[code]; ok {
		return name
	}
	return code
}

func IsSupported(code string) bool {
	_, ok := supported[code]
	return ok
}

// Validate checks a detected language code against the supported set.
func Validate(code string) (Language, error) {
	if code == "" {
		return Language{}, &ValidationError{Message: undetectedMessage}
	}
	if !IsSupported(code) {
		return Language{}, &ValidationError{Code: code, Message: fmt.Sprintf(unsupportedMessage, code)}
	}
	return Language{Code: code, Name: Name(code)}, nil
}

func TranslationTargets() []Language {
	out := make([]Language, len(translationTargets))
	copy(out, translationTargets)
	return out
}

func ValidateTranslationTarget(code string) (Language, error) {
	for _, t := range translationTargets {
		if t.Code == code {
			return t, nil
		}
	}
	return Language{}, &ValidationError{Code: code, Message: fmt.Sprintf(badTargetMessage, code)}
}

// TargetName prefers the translation-target label ("Chinese (Simplified)") over the
// generic display name.
func TargetName(code string) string {
	if t, err := ValidateTranslationTarget(code); err == nil {
		return t.Name
	}
	return Name(code)
}

// Lookup reports the language for a known code.
func Lookup(code string) (Language, bool) {
	name, ok := names[code]
	if !ok {
		return Language{}, false
	}
	return Language{Code: code, Name: name}, true
}
