package contract

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"te": "Telugu",
	"ta": "Tamil",
	"kn": "Kannada",
	"ml": "Malayalam",
	"gu": "Gujarati",
	"mr": "Marathi",
	"bn": "Bengali",
	"pa": "Punjabi",
	"or": "Odia",
	"ur": "Urdu",
}

// LanguageName returns the English name of an ISO 639-1 code, or "" when it
// is not one the assistant speaks.
func LanguageName(code string) string {
	return languageNames[code]
}
