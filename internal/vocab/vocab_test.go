package vocab

import "testing"

func TestMatchesSingleWordWholeToken(t *testing.T) {
	if Matches("scan this qr code for me", Delivery) {
		t.Fatal("'cod' must not match inside 'code'")
	}
	if !Matches("pay cod at the door", Delivery) {
		t.Fatal("expected 'cod' token to match delivery vocabulary")
	}
}

func TestMatchesBigramSubstring(t *testing.T) {
	if !Matches("scan this qr code for me", Scam) {
		t.Fatal("expected 'qr code' bigram to match scam vocabulary")
	}
	if !Matches("could you open the door quickly", Entry) {
		t.Fatal("expected 'open the door' to match entry vocabulary")
	}
}

func TestMatchesCaseFolded(t *testing.T) {
	if !Matches("Share your OTP now", Scam) {
		t.Fatal("expected case-folded OTP match")
	}
}

func TestMatchesEmptyTranscript(t *testing.T) {
	if Matches("", Threat) {
		t.Fatal("empty transcript must not match")
	}
}

func TestThreatExcludesEntryPhrases(t *testing.T) {
	text := "open the door"
	if Matches(text, Threat) {
		t.Fatal("plain entry request must not read as a threat")
	}
	if !Matches(text, Entry) {
		t.Fatal("expected entry vocabulary match")
	}
}

func TestDistressIncludesPleadingButEmergencyDoesNot(t *testing.T) {
	text := "please share the otp"
	if !Matches(text, Distress) {
		t.Fatal("expected 'please' to register as distress")
	}
	if Matches(text, Emergency) {
		t.Fatal("'please' alone must not register as an emergency")
	}
}

func TestHasDevanagari(t *testing.T) {
	if !HasDevanagari("ओटीपी बता दो") {
		t.Fatal("expected Devanagari detection")
	}
	if HasDevanagari("open the door") {
		t.Fatal("latin text misdetected as Devanagari")
	}
}

func TestNormalizeAppendsRomanized(t *testing.T) {
	got := Normalize("ओटीपी बता दो")
	if !Matches(got, Scam) {
		t.Fatalf("normalized transcript %q should match scam vocabulary", got)
	}
}

func TestNormalizeLatinPassthrough(t *testing.T) {
	in := "I have a package delivery"
	if got := Normalize(in); got != in {
		t.Fatalf("latin input changed: %q", got)
	}
}

func TestNormalizeDeduplicates(t *testing.T) {
	got := Normalize("डिलिवरी डिलीवरी")
	want := "डिलिवरी डिलीवरी delivery"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestContainsLabel(t *testing.T) {
	if !ContainsLabel([]string{"Person", "Backpack"}, PackageLabels) {
		t.Fatal("expected backpack to match package labels")
	}
	if ContainsLabel([]string{"person", "umbrella"}, WeaponLabels) {
		t.Fatal("umbrella is not a weapon")
	}
}
