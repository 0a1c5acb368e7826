package events

import (
	"fmt"
	"strings"
)

// Locale is a supported localization for user-facing notices.
type Locale string

// supported locales, English is the base
const (
	LocaleEN Locale = "en"
	LocaleHI Locale = "hi"
	LocaleTE Locale = "te"
	LocaleTA Locale = "ta"
	LocaleMR Locale = "mr"
)

// localeHints maps room-name keywords to locales. The hint list is cheap to test,
// so the locale is re-derived on every message instead of cached per room.
var localeHints = []struct {
	keywords []string
	locale   Locale
}{
	{[]string{"hindi", "हिंदी", "हिन्दी"}, LocaleHI},
	{[]string{"telugu", "తెలుగు"}, LocaleTE},
	{[]string{"tamil", "தமிழ்"}, LocaleTA},
	{[]string{"marathi", "मराठी"}, LocaleMR},
}

// PickLocale selects a locale by keyword-matching the room display name,
// defaulting to English when no hint matches.
func PickLocale(roomName string) Locale {
	name := strings.ToLower(roomName)
	for _, hint := range localeHints {
		for _, kw := range hint.keywords {
			if strings.Contains(name, kw) {
				return hint.locale
			}
		}
	}
	return LocaleEN
}

type localeStrings struct {
	challenge      string // args: user name, timeout minutes
	wrongCode      string
	verified       string // args: user name
	timeout        string // args: user name
	contentRemoved string // args: violation kind
}

var messages = map[Locale]localeStrings{
	LocaleEN: {
		challenge:      "Welcome %s! To stay in this group, please reply with the code shown in the image within %d minutes.",
		wrongCode:      "That code is not correct, please check the image and try again.",
		verified:       "Thanks %s, you are verified. Welcome to the group!",
		timeout:        "%s didn't verify in time and was removed from the group.",
		contentRemoved: "Your message was removed: %s. Contact an admin if you think this is a mistake.",
	},
	LocaleHI: {
		challenge:      "स्वागत है %s! समूह में बने रहने के लिए, कृपया %d मिनट के भीतर छवि में दिखाए गए कोड के साथ उत्तर दें।",
		wrongCode:      "यह कोड सही नहीं है, कृपया छवि देखें और फिर से प्रयास करें।",
		verified:       "धन्यवाद %s, आप सत्यापित हैं। समूह में आपका स्वागत है!",
		timeout:        "%s ने समय पर सत्यापन नहीं किया और उन्हें समूह से हटा दिया गया।",
		contentRemoved: "आपका संदेश हटा दिया गया: %s। यदि आपको लगता है कि यह गलती है तो व्यवस्थापक से संपर्क करें।",
	},
	LocaleTE: {
		challenge:      "స్వాగతం %s! గుంపులో ఉండటానికి, దయచేసి %d నిమిషాల్లో చిత్రంలో చూపిన కోడ్‌తో బదులివ్వండి.",
		wrongCode:      "ఆ కోడ్ సరైనది కాదు, దయచేసి చిత్రాన్ని చూసి మళ్లీ ప్రయత్నించండి.",
		verified:       "ధన్యవాదాలు %s, మీరు ధృవీకరించబడ్డారు. గుంపుకు స్వాగతం!",
		timeout:        "%s సమయానికి ధృవీకరించలేదు, గుంపు నుండి తొలగించబడ్డారు.",
		contentRemoved: "మీ సందేశం తొలగించబడింది: %s. ఇది పొరపాటు అనుకుంటే అడ్మిన్‌ను సంప్రదించండి.",
	},
	LocaleTA: {
		challenge:      "வரவேற்கிறோம் %s! குழுவில் இருக்க, %d நிமிடங்களுக்குள் படத்தில் காட்டப்பட்ட குறியீட்டை பதிலளிக்கவும்.",
		wrongCode:      "அந்த குறியீடு சரியல்ல, படத்தைப் பார்த்து மீண்டும் முயற்சிக்கவும்.",
		verified:       "நன்றி %s, நீங்கள் சரிபார்க்கப்பட்டீர்கள். குழுவிற்கு வரவேற்கிறோம்!",
		timeout:        "%s சரியான நேரத்தில் சரிபார்க்கவில்லை, குழுவிலிருந்து நீக்கப்பட்டார்.",
		contentRemoved: "உங்கள் செய்தி நீக்கப்பட்டது: %s. இது தவறு என நினைத்தால் நிர்வாகியை தொடர்பு கொள்ளவும்.",
	},
	LocaleMR: {
		challenge:      "स्वागत आहे %s! गटात राहण्यासाठी, कृपया %d मिनिटांत प्रतिमेतील कोडसह उत्तर द्या.",
		wrongCode:      "तो कोड बरोबर नाही, कृपया प्रतिमा पहा आणि पुन्हा प्रयत्न करा.",
		verified:       "धन्यवाद %s, तुमची पडताळणी झाली आहे. गटात स्वागत आहे!",
		timeout:        "%s ने वेळेवर पडताळणी केली नाही आणि त्यांना गटातून काढण्यात आले.",
		contentRemoved: "तुमचा संदेश काढला गेला: %s. ही चूक वाटत असल्यास प्रशासकाशी संपर्क साधा.",
	},
}

func (l Locale) strings() localeStrings {
	if s, ok := messages[l]; ok {
		return s
	}
	return messages[LocaleEN]
}

// ChallengeMsg is the localized challenge notice.
func (l Locale) ChallengeMsg(name string, timeoutMins int) string {
	return fmt.Sprintf(l.strings().challenge, name, timeoutMins)
}

// WrongCodeMsg is the localized wrong-code notice.
func (l Locale) WrongCodeMsg() string { return l.strings().wrongCode }

// VerifiedMsg is the localized verification success notice.
func (l Locale) VerifiedMsg(name string) string { return fmt.Sprintf(l.strings().verified, name) }

// TimeoutMsg is the localized verification timeout notice.
func (l Locale) TimeoutMsg(name string) string { return fmt.Sprintf(l.strings().timeout, name) }

// ContentRemovedMsg is the localized content removal notice.
func (l Locale) ContentRemovedMsg(kind string) string {
	return fmt.Sprintf(l.strings().contentRemoved, kind)
}
