package vocab

import "strings"

// Keyword lists for intent and emotion classification. Single-word entries
// match whole tokens; multi-word entries match as substrings. All lists are
// romanized; run Normalize on the transcript first so Devanagari input
// matches too.

// Threat drives both the aggression intent and the aggressive emotion.
// Entry phrases such as "open the door" are deliberately absent so that
// non-threatening entry requests classify as entry_request.
var Threat = []string{
	"angry", "break", "smash", "kill", "killing", "threat", "hit", "punch",
	"attack", "fight", "destroy",
	"dekh lena", "todenge", "tod dunga", "maar", "maarunga", "maar dunga",
	"kholiye warna", "warna", "dhamki", "peetna", "chaku", "goli",
	"jaan se", "barbad", "khatam", "darwaza tod",
}

// Emergency drives the help intent: genuine calls for assistance.
var Emergency = []string{
	"help", "emergency", "ambulance", "accident", "fire", "blood",
	"injured", "hurt", "bachao", "madad", "aag lagi", "chot", "khoon",
	"gir gaya", "dard",
}

// Distress drives the distressed emotion. Broader than Emergency: it also
// carries pleading and fear vocabulary that alone does not amount to a help
// intent.
var Distress = append([]string{
	"please", "scared", "afraid", "lost", "missing", "crying", "hospital",
	"kho gayi", "kho gaya", "mummy kho", "papa kho", "ro raha", "dar",
	"kripya",
}, Emergency...)

// Scam covers OTP, payment-credential, and verification-fraud patterns.
var Scam = []string{
	"otp", "verification code", "verify karna", "code bata", "upi",
	"qr scan", "qr code", "bank", "account number", "refund", "kyc",
	"aadhaar", "pan card", "lottery", "prize", "winner",
}

// Occupancy covers probes about whether anyone is home.
var Occupancy = []string{
	"anyone home", "is anyone", "anybody home", "home alone", "alone",
	"koi ghar pe", "koi hai", "ghar pe hai", "kaun hai ghar",
	"owner hai kya", "ghar khali", "when will", "kab aayenge",
}

// Identity covers unverifiable personal-relationship claims.
var Identity = []string{
	"i know the owner", "know the owner", "owner told me", "owner ne bola",
	"relative", "chacha hoon", "mama hoon", "friend hoon",
	"personally jaanta", "unke bete", "unki wife", "ghar wale",
	"family member",
}

// Entry covers requests to open, unlock, or be let inside. The same list
// feeds the entry-context risk adjustment and forces escalation.
var Entry = []string{
	"open the door", "open door", "let me in", "unlock", "open gate",
	"come inside", "andar aana", "andar aane", "darwaza khol", "gate khol",
	"kholo", "khol do", "aane do", "building mein", "lift use",
}

// Government covers officialdom and utility-inspection claims.
var Government = []string{
	"police", "government", "sarkari", "court", "legal notice", "tax",
	"electricity", "bijli", "gas", "water board", "meter reading",
	"inspection", "verification", "census", "survey",
}

// Staff covers domestic-help role claims.
var Staff = []string{
	"maid", "cook", "driver", "helper", "bai", "kaam wali", "kaam karta",
	"kaam karungi", "safai", "purani bai", "replacement", "chaabi", "keys",
}

// Religious covers temple, church, and festival donation asks.
var Religious = []string{
	"donation", "chanda", "temple", "mandir", "masjid", "church",
	"gurudwara", "havan", "puja", "bhagwan", "ganpati", "durga",
	"society collection", "festival",
}

// Sales covers demos, subscriptions, and policy pitches.
var Sales = []string{
	"demo", "free demo", "offer", "discount", "sales", "insurance",
	"policy", "scheme", "broadband", "water purifier", "purifier", "loan",
	"free trial", "promotion",
}

// ChildElderly covers child and elderly vocabulary. The intent fires only
// when combined with Hydration or Distress vocabulary.
var ChildElderly = []string{
	"child", "kid", "beta", "bachcha", "mummy", "papa", "school",
	"grandma", "grandpa", "dadi", "nani", "uncle", "aunty", "elderly",
	"old man", "old lady", "buzurg", "bhai sahab",
}

// Hydration covers small-comfort requests that pair with ChildElderly.
var Hydration = []string{
	"water", "paani", "thirsty", "pyaas", "washroom", "bathroom",
	"ghar nahi mil raha",
}

// Delivery covers package and courier vocabulary.
var Delivery = []string{
	"package", "delivery", "courier", "parcel", "cod", "cash on delivery",
	"amazon", "flipkart", "dhl", "swiggy", "zomato", "order",
}

// Visitor covers benign social-call vocabulary.
var Visitor = []string{
	"owner", "meet", "meeting", "appointment", "friend", "family",
	"milna", "milne aaya", "guest",
}

// PackageLabels are detected-object labels that corroborate a delivery
// claim.
var PackageLabels = []string{"backpack", "suitcase", "handbag", "box", "package", "bag"}

// WeaponLabels are detected-object labels treated as weapons.
var WeaponLabels = []string{"knife", "gun", "pistol", "rifle"}

// Matches reports whether text contains any keyword from the list.
// Matching is case-folded; single-word keywords must match a whole token,
// multi-word keywords match anywhere as substrings.
func Matches(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	var tokens map[string]bool
	for _, kw := range keywords {
		if strings.ContainsRune(kw, ' ') {
			if strings.Contains(lower, kw) {
				return true
			}
			continue
		}
		if tokens == nil {
			tokens = tokenize(lower)
		}
		if tokens[kw] {
			return true
		}
	}
	return false
}

// ContainsLabel reports whether any detection label equals one of the
// reference labels, case-folded.
func ContainsLabel(labels []string, reference []string) bool {
	for _, l := range labels {
		ll := strings.ToLower(l)
		for _, r := range reference {
			if ll == r {
				return true
			}
		}
	}
	return false
}

func tokenize(lower string) map[string]bool {
	tokens := make(map[string]bool)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, f := range fields {
		tokens[f] = true
	}
	return tokens
}
