package vocab

import (
	"sort"
	"strings"
)

// devanagariToLatin maps Devanagari keywords and phrases heard at Indian
// doorsteps to their romanized equivalents. Speech-to-text emits Devanagari
// for Hindi speech; keyword matching runs on romanized text, so detected
// phrases are appended to the transcript before classification.
var devanagariToLatin = map[string]string{
	// scam / financial
	"ओटीपी":          "otp",
	"ओ टी पी":        "otp",
	"वेरिफिकेशन कोड": "verification code",
	"वेरिफिकेशन":     "verification",
	"वेरीफिकेशन":     "verification",
	"वेरिफाई":        "verify",
	"यूपीआई":         "upi",
	"यू पी आई":       "upi",
	"क्यूआर":         "qr",
	"क्यू आर":        "qr",
	"स्कैन":          "scan",
	"अकाउंट नंबर":    "account number",
	"अकाउंट":         "account",
	"बैंक":           "bank",
	"आधार":           "aadhaar",
	"केवाईसी":        "kyc",
	"के वाई सी":      "kyc",
	"पैन कार्ड":      "pan card",
	"रिफंड":          "refund",
	"लॉटरी":          "lottery",
	"प्राइज":         "prize",
	"विनर":           "winner",
	"पेमेंट":         "payment",
	"ट्रांसफर":       "transfer",
	"पैसा":           "paisa",
	"पैसे":           "paise",
	"रुपये":          "rupees",
	"कैश":            "cash",

	// delivery
	"डिलिवरी":   "delivery",
	"डिलीवरी":   "delivery",
	"कूरियर":    "courier",
	"पार्सल":    "parcel",
	"पैकेज":     "package",
	"अमेज़न":    "amazon",
	"अमेज़ॉन":   "amazon",
	"फ्लिपकार्ट": "flipkart",
	"स्विगी":    "swiggy",
	"ज़ोमैटो":   "zomato",
	"ऑर्डर":     "order",
	"कम्प्लीट":  "complete",

	// aggression / threat
	"देख लेना":     "dekh lena",
	"मार":          "maar",
	"मारूंगा":      "maarunga",
	"मार दूंगा":    "maar dunga",
	"तोड़ेंगे":     "todenge",
	"तोड़ दूंगा":   "tod dunga",
	"वरना":         "warna",
	"धमकी":         "dhamki",
	"चाकू":         "chaku",
	"गोली":         "goli",
	"जान से":       "jaan se",
	"दरवाज़ा तोड़": "darwaza tod",
	"दरवाजा तोड़":  "darwaza tod",
	"खोल वरना":     "khol warna",
	"बर्बाद":       "barbad",
	"ख़तम":         "khatam",
	"खतम":          "khatam",

	// distress / emergency
	"बचाओ":      "bachao",
	"मदद":       "madad",
	"आग":        "aag",
	"लगी":       "lagi",
	"खो गई":     "kho gayi",
	"खो गया":    "kho gaya",
	"दर्द":      "dard",
	"चोट":       "chot",
	"खून":       "khoon",
	"हॉस्पिटल":  "hospital",
	"एम्बुलेंस": "ambulance",
	"पुलिस":     "police",

	// occupancy probe
	"कोई घर पे":   "koi ghar pe",
	"कोई घर पर":   "koi ghar pe",
	"कोई है":      "koi hai",
	"घर पे है":    "ghar pe hai",
	"घर पर है":    "ghar pe hai",
	"कौन है घर":   "kaun hai ghar",
	"ओनर है क्या": "owner hai kya",
	"घर खाली":     "ghar khali",

	// entry request
	"अंदर आना":      "andar aana",
	"अंदर आने":      "andar aane",
	"दरवाज़ा खोल":   "darwaza khol",
	"दरवाजा खोल":    "darwaza khol",
	"दरवाज़ा खोलो":  "darwaza khol",
	"गेट खोल":       "gate khol",

	// identity / staff claims
	"ओनर ने बोला":  "owner ne bola",
	"ओनर":          "owner",
	"रिलेटिव":      "relative",
	"रिलेटिव हूं":  "relative hoon",
	"चाचा हूं":     "chacha hoon",
	"मामा हूं":     "mama hoon",
	"फ्रेंड हूं":   "friend hoon",
	"फैमिली मेंबर": "family member",
	"घर वाले":      "ghar wale",
	"काम करूंगी":   "kaam karungi",
	"काम करता":     "kaam karta",
	"बाई":          "bai",
	"मेड":          "maid",
	"पुरानी बाई":   "purani bai",
	"सफ़ाई":        "safai",
	"सफाई":         "safai",
	"ड्राइवर":      "driver",
	"चाबी":         "chaabi",

	// government / authority
	"सरकारी":       "sarkari",
	"गवर्नमेंट":    "government",
	"कोर्ट":        "court",
	"लीगल नोटिस":   "legal notice",
	"टैक्स":        "tax",
	"इंस्पेक्शन":   "inspection",
	"बिजली":        "bijli",
	"इलेक्ट्रिसिटी": "electricity",
	"गैस":          "gas",
	"गैस लीक":      "gas leak",
	"वॉटर बोर्ड":   "water board",
	"मीटर रीडिंग":  "meter reading",
	"सेंसस":        "census",
	"सर्वे":        "survey",

	// religious / donation
	"चंदा":       "chanda",
	"डोनेशन":     "donation",
	"मंदिर":      "mandir",
	"टेम्पल":     "temple",
	"मस्जिद":     "masjid",
	"चर्च":       "church",
	"गुरुद्वारा": "gurudwara",
	"हवन":        "havan",
	"पूजा":       "puja",
	"भगवान":      "bhagwan",
	"गणपति":      "ganpati",
	"दुर्गा":     "durga",

	// sales
	"फ्री डेमो":       "free demo",
	"ऑफर":             "offer",
	"डिस्काउंट":       "discount",
	"इंश्योरेंस":      "insurance",
	"पॉलिसी":          "policy",
	"वाटर प्यूरिफायर": "water purifier",
	"प्यूरिफायर":      "purifier",
	"ब्रॉडबैंड":       "broadband",
	"लोन":             "loan",

	// child / elderly
	"मम्मी खो गई":      "mummy kho gayi",
	"मम्मी":            "mummy",
	"पापा खो गए":       "papa kho gaye",
	"बच्चा":            "bachcha",
	"पानी मिलेगा":      "paani milega",
	"भाई साहब":         "bhai sahab",
	"घर नहीं मिल रहा":  "ghar nahi mil raha",

	// common verbs / phrases
	"बता दीजिए":    "bata dijiye",
	"बता दीजे":     "bata dijiye",
	"पता दीजे":     "bata dijiye",
	"पता दीजिए":    "bata dijiye",
	"बताओ":         "batao",
	"बता दो":       "bata do",
	"कर दीजिए":     "kar dijiye",
	"कर दो":        "kar do",
	"खोलो":         "kholo",
	"खोल दो":       "khol do",
	"आने दो":       "aane do",
	"ज़रूरी":       "zaroori",
	"जरूरी":        "zaroori",
	"बहुत ज़रूरी":  "bahut zaroori",
}

// sortedDevanagari caches the mapping keys longest-first so multi-word
// phrases match before their substrings.
var sortedDevanagari = func() []string {
	keys := make([]string, 0, len(devanagariToLatin))
	for k := range devanagariToLatin {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// HasDevanagari reports whether text contains characters from the
// Devanagari Unicode block (U+0900..U+097F).
func HasDevanagari(text string) bool {
	for _, r := range text {
		if r >= 0x0900 && r <= 0x097F {
			return true
		}
	}
	return false
}

// Normalize returns the transcript with romanized equivalents of any
// detected Devanagari keywords appended, so downstream matching works
// regardless of script. Pure Latin input is returned unchanged.
func Normalize(text string) string {
	if text == "" || !HasDevanagari(text) {
		return text
	}

	lower := strings.ToLower(text)
	var additions []string
	seen := make(map[string]bool)
	for _, dev := range sortedDevanagari {
		if strings.Contains(lower, dev) {
			latin := devanagariToLatin[dev]
			if !seen[latin] {
				seen[latin] = true
				additions = append(additions, latin)
			}
		}
	}
	if len(additions) == 0 {
		return text
	}
	return text + " " + strings.Join(additions, " ")
}
