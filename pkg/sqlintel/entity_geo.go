package sqlintel

import (
	"regexp"
	"strings"
)

// Authoritative gazetteers for §4.4's list-free entity canonicalization:
// country, subdivision, currency, and timezone tokens resolve to a fixed
// canonical code rather than a free-text label, so "us", "usa", and
// "united states" all resolve to the same COUNTRY:US tag regardless of
// surface spelling.

// countryGazetteer maps lowercased country names, ISO-3166 alpha-2, and
// alpha-3 codes to their canonical alpha-2 code. Not exhaustive of all 249
// entries in ISO-3166 — this is the practical subset that shows up in
// column names and free-form identifier text.
var countryGazetteer = map[string]string{
	"us": "US", "usa": "US", "u.s.a": "US", "u.s": "US", "united states": "US",
	"united states of america": "US", "america": "US",
	"gb": "GB", "gbr": "GB", "uk": "GB", "united kingdom": "GB", "britain": "GB",
	"great britain": "GB", "england": "GB",
	"ca": "CA", "can": "CA", "canada": "CA",
	"au": "AU", "aus": "AU", "australia": "AU",
	"de": "DE", "deu": "DE", "germany": "DE",
	"fr": "FR", "fra": "FR", "france": "FR",
	"jp": "JP", "jpn": "JP", "japan": "JP",
	"cn": "CN", "chn": "CN", "china": "CN",
	"in": "IN", "ind": "IN", "india": "IN",
	"br": "BR", "bra": "BR", "brazil": "BR",
	"ru": "RU", "rus": "RU", "russia": "RU", "russian federation": "RU",
	"es": "ES", "esp": "ES", "spain": "ES",
	"it": "IT", "ita": "IT", "italy": "IT",
	"mx": "MX", "mex": "MX", "mexico": "MX",
	"ar": "AR", "arg": "AR", "argentina": "AR",
	"nl": "NL", "nld": "NL", "netherlands": "NL", "holland": "NL",
	"se": "SE", "swe": "SE", "sweden": "SE",
	"ch": "CH", "che": "CH", "switzerland": "CH",
	"kr": "KR", "kor": "KR", "south korea": "KR", "korea": "KR",
	"sg": "SG", "sgp": "SG", "singapore": "SG",
	"za": "ZA", "zaf": "ZA", "south africa": "ZA",
	"nz": "NZ", "nzl": "NZ", "new zealand": "NZ",
	"ie": "IE", "irl": "IE", "ireland": "IE",
	"pt": "PT", "prt": "PT", "portugal": "PT",
	"pl": "PL", "pol": "PL", "poland": "PL",
	"no": "NO", "nor": "NO", "norway": "NO",
	"dk": "DK", "dnk": "DK", "denmark": "DK",
	"fi": "FI", "fin": "FI", "finland": "FI",
	"be": "BE", "bel": "BE", "belgium": "BE",
	"at": "AT", "aut": "AT", "austria": "AT",
	"gr": "GR", "grc": "GR", "greece": "GR",
	"tr": "TR", "tur": "TR", "turkey": "TR",
	"eg": "EG", "egy": "EG", "egypt": "EG",
	"sa": "SA", "sau": "SA", "saudi arabia": "SA",
	"ae": "AE", "are": "AE", "uae": "AE", "united arab emirates": "AE",
	"il": "IL", "isr": "IL", "israel": "IL",
	"th": "TH", "tha": "TH", "thailand": "TH",
	"vn": "VN", "vnm": "VN", "vietnam": "VN",
	"ph": "PH", "phl": "PH", "philippines": "PH",
	"id": "ID", "idn": "ID", "indonesia": "ID",
	"my": "MY", "mys": "MY", "malaysia": "MY",
	"pk": "PK", "pak": "PK", "pakistan": "PK",
	"bd": "BD", "bgd": "BD", "bangladesh": "BD",
	"ng": "NG", "nga": "NG", "nigeria": "NG",
	"ke": "KE", "ken": "KE", "kenya": "KE",
	"co": "CO", "col": "CO", "colombia": "CO",
	"cl": "CL", "chl": "CL", "chile": "CL",
	"pe": "PE", "per": "PE", "peru": "PE",
	"ve": "VE", "ven": "VE", "venezuela": "VE",
}

// usStateGazetteer maps lowercased US state/territory names and their
// two-letter abbreviations to their ISO-3166-2 subdivision code.
var usStateGazetteer = map[string]string{
	"alabama": "US-AL", "al": "US-AL",
	"alaska": "US-AK", "ak": "US-AK",
	"arizona": "US-AZ", "az": "US-AZ",
	"arkansas": "US-AR", "ar": "US-AR",
	"california": "US-CA", "calif": "US-CA",
	"colorado": "US-CO", "co": "US-CO",
	"connecticut": "US-CT", "ct": "US-CT",
	"delaware": "US-DE", "de": "US-DE",
	"florida": "US-FL", "fl": "US-FL",
	"georgia": "US-GA", "ga": "US-GA",
	"hawaii": "US-HI", "hi": "US-HI",
	"idaho": "US-ID", "id": "US-ID",
	"illinois": "US-IL", "il": "US-IL",
	"indiana": "US-IN", "in": "US-IN",
	"iowa": "US-IA", "ia": "US-IA",
	"kansas": "US-KS", "ks": "US-KS",
	"kentucky": "US-KY", "ky": "US-KY",
	"louisiana": "US-LA", "la": "US-LA",
	"maine": "US-ME", "me": "US-ME",
	"maryland": "US-MD", "md": "US-MD",
	"massachusetts": "US-MA", "ma": "US-MA",
	"michigan": "US-MI", "mi": "US-MI",
	"minnesota": "US-MN", "mn": "US-MN",
	"mississippi": "US-MS", "ms": "US-MS",
	"missouri": "US-MO", "mo": "US-MO",
	"montana": "US-MT", "mt": "US-MT",
	"nebraska": "US-NE", "ne": "US-NE",
	"nevada": "US-NV", "nv": "US-NV",
	"new hampshire": "US-NH", "nh": "US-NH",
	"new jersey": "US-NJ", "nj": "US-NJ",
	"new mexico": "US-NM", "nm": "US-NM",
	"new york": "US-NY", "ny": "US-NY",
	"north carolina": "US-NC", "nc": "US-NC",
	"north dakota": "US-ND", "nd": "US-ND",
	"ohio": "US-OH", "oh": "US-OH",
	"oklahoma": "US-OK", "ok": "US-OK",
	"oregon": "US-OR", "or": "US-OR",
	"pennsylvania": "US-PA", "pa": "US-PA",
	"rhode island": "US-RI", "ri": "US-RI",
	"south carolina": "US-SC", "sc": "US-SC",
	"south dakota": "US-SD", "sd": "US-SD",
	"tennessee": "US-TN", "tn": "US-TN",
	"texas": "US-TX", "tx": "US-TX",
	"utah": "US-UT", "ut": "US-UT",
	"vermont": "US-VT", "vt": "US-VT",
	"virginia": "US-VA", "va": "US-VA",
	"washington": "US-WA", "wa": "US-WA",
	"west virginia": "US-WV", "wv": "US-WV",
	"wisconsin": "US-WI", "wi": "US-WI",
	"wyoming": "US-WY", "wy": "US-WY",
	"district of columbia": "US-DC", "dc": "US-DC",
}

// currencyGazetteer maps lowercased ISO-4217 codes, localized names, and a
// small fixed set of currency symbols to the canonical ISO-4217 code.
var currencyGazetteer = map[string]string{
	"usd": "USD", "dollar": "USD", "dollars": "USD", "us dollar": "USD",
	"eur": "EUR", "euro": "EUR", "euros": "EUR",
	"gbp": "GBP", "pound": "GBP", "pounds": "GBP", "sterling": "GBP",
	"jpy": "JPY", "yen": "JPY",
	"cny": "CNY", "rmb": "CNY", "yuan": "CNY", "renminbi": "CNY",
	"inr": "INR", "rupee": "INR", "rupees": "INR",
	"aud": "AUD", "cad": "CAD", "chf": "CHF", "franc": "CHF", "francs": "CHF",
	"sek": "SEK", "nok": "NOK", "dkk": "DKK", "nzd": "NZD",
	"mxn": "MXN", "peso": "MXN", "pesos": "MXN",
	"brl": "BRL", "real": "BRL", "reais": "BRL",
	"zar": "ZAR", "rand": "ZAR",
	"sgd": "SGD", "hkd": "HKD", "krw": "KRW", "won": "KRW",
	"rub": "RUB", "ruble": "RUB", "rubles": "RUB",
	"try": "TRY", "lira": "TRY",
	"aed": "AED", "dirham": "AED", "dirhams": "AED",
	"sar": "SAR", "riyal": "SAR", "riyals": "SAR",
}

// timezoneGazetteer holds commonly referenced IANA timezone identifiers,
// matched verbatim (case-preserved) against the unnormalized input since
// the identifier's casing and "/" separators are significant.
var timezoneGazetteer = setOf(
	"UTC", "GMT",
	"America/New_York", "America/Chicago", "America/Denver",
	"America/Los_Angeles", "America/Anchorage", "America/Sao_Paulo",
	"America/Mexico_City", "America/Toronto", "America/Vancouver",
	"Europe/London", "Europe/Paris", "Europe/Berlin", "Europe/Madrid",
	"Europe/Rome", "Europe/Moscow", "Europe/Amsterdam", "Europe/Dublin",
	"Asia/Tokyo", "Asia/Shanghai", "Asia/Hong_Kong", "Asia/Singapore",
	"Asia/Kolkata", "Asia/Dubai", "Asia/Seoul", "Asia/Bangkok",
	"Australia/Sydney", "Australia/Melbourne", "Australia/Perth",
	"Africa/Cairo", "Africa/Johannesburg", "Pacific/Auckland",
)

// ianaZonePattern recognizes the general Continent/City shape of an IANA
// timezone identifier even when the specific city isn't in the gazetteer
// above, so the canonical form is still the identifier itself.
var ianaZonePattern = regexp.MustCompile(`^(?:America|Europe|Asia|Africa|Australia|Pacific|Atlantic|Indian|Antarctica)/[A-Za-z_]+(?:/[A-Za-z_]+)?$`)

// currencySymbols maps bare currency symbols (rather than names/codes) to
// their ISO-4217 code, checked independently of the tokenized candidates
// since symbols don't survive word-splitting the way alphanumeric tokens do.
var currencySymbols = map[string]string{
	"$": "USD", "€": "EUR", "£": "GBP", "¥": "JPY", "₹": "INR",
}

// geoMatch is one canonicalized hit: Kind is one of COUNTRY, SUBDIVISION,
// CURRENCY, TIMEZONE; Canonical is the authoritative code/identifier;
// Score follows §4.4 (gazetteer hits ≥0.9, pattern hits ≥0.6).
type geoMatch struct {
	Kind      string
	Canonical string
	Score     float64
	Source    string
}

// recognizeGeo resolves country, subdivision, currency, and timezone
// tokens out of free text using the gazetteers above, trying candidate
// n-grams (1-3 words) plus the whole normalized string, and falling back
// to the verbatim string for timezone matching since timezone identifiers
// are not word-tokenizable the same way.
func recognizeGeo(text string) []geoMatch {
	var out []geoMatch
	seen := make(map[string]bool)
	add := func(kind, canonical string, score float64, source string) {
		key := kind + ":" + canonical
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, geoMatch{Kind: kind, Canonical: canonical, Score: score, Source: source})
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if timezoneGazetteer[trimmed] || ianaZonePattern.MatchString(trimmed) {
		add("TIMEZONE", trimmed, 0.95, "gazetteer")
	}

	lower := strings.ToLower(trimmed)
	normalized := nonIdentChars.ReplaceAllString(lower, "_")
	words := strings.Fields(strings.ReplaceAll(normalized, "_", " "))

	candidates := make(map[string]bool)
	candidates[strings.Join(words, " ")] = true
	for n := 1; n <= 3; n++ {
		for i := 0; i+n <= len(words); i++ {
			candidates[strings.Join(words[i:i+n], " ")] = true
		}
	}
	// Also consider candidates with no spaces (e.g. "california" from a
	// column literally named that) and hyphen/space-joined abbreviations.
	candidates[strings.Join(words, "")] = true

	for cand := range candidates {
		if cand == "" {
			continue
		}
		if code, ok := countryGazetteer[cand]; ok {
			add("COUNTRY", code, 0.9, "gazetteer")
		}
		if code, ok := usStateGazetteer[cand]; ok {
			add("SUBDIVISION", code, 0.9, "gazetteer")
		}
		if code, ok := currencyGazetteer[cand]; ok {
			add("CURRENCY", code, 0.9, "gazetteer")
		}
	}

	for sym, code := range currencySymbols {
		if strings.Contains(trimmed, sym) {
			add("CURRENCY", code, 0.6, "pattern")
		}
	}

	return out
}
