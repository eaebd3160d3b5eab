package sqlintel

import (
	"regexp"
	"sort"
	"strings"
)

// EntityKind labels a semantic category an EntityRecognizer can attach to a
// column name: person, organization, geopolitical entity, or physical
// location. These feed table/column summaries and retrieval, not the query
// planner directly.
type EntityKind string

const (
	EntityPerson EntityKind = "person"
	EntityOrg    EntityKind = "org"
	EntityGPE    EntityKind = "gpe"
	EntityLoc    EntityKind = "loc"
)

// gazetteers are O(1) per-term lookups checked before falling back to regex.
// Term lists are deliberately column-name oriented rather than general
// natural-language NER vocabularies.
var gazetteers = map[EntityKind]map[string]bool{
	EntityPerson: setOf(
		"first", "firstname", "fname", "forename", "given", "givenname",
		"last", "lastname", "lname", "surname", "family", "familyname",
		"full", "fullname", "name", "displayname", "username",
		"customer_name", "user_name", "employee_name", "person_name",
		"contact_name", "client_name", "member_name", "owner_name",
		"author_name", "creator_name", "manager_name", "supervisor_name",
		"mr", "mrs", "ms", "dr", "prof", "professor",
	),
	EntityOrg: setOf(
		"company", "corp", "corporation", "inc", "incorporated", "ltd",
		"limited", "llc", "co", "group", "enterprises", "organization",
		"org", "business", "firm", "agency", "department", "dept",
		"division", "unit", "team", "branch", "vendor", "supplier",
		"client", "partner", "contractor", "manufacturer", "distributor",
		"retailer", "wholesaler", "company_name", "org_name",
		"business_name", "vendor_name", "supplier_name", "client_name",
		"partner_name", "firm_name", "agency_name", "department_name",
		"division_name", "plc", "sa", "gmbh",
	),
	EntityGPE: setOf(
		"country", "nation", "state", "province", "region", "territory",
		"district", "county", "city", "town", "municipality", "locale",
		"area", "zone", "sector", "nationality", "citizenship",
		"usa", "us", "uk", "gb", "can", "ca", "aus", "au", "deu", "de",
		"fra", "fr", "jpn", "jp", "chn", "cn", "ind", "in", "bra", "br",
		"rus", "ru", "esp", "es", "america", "canada", "england",
		"germany", "france", "spain", "italy", "japan", "china", "india",
		"brazil", "russia", "australia", "mexico", "argentina",
		"netherlands", "sweden",
	),
	EntityLoc: setOf(
		"address", "location", "place", "position", "site", "venue",
		"facility", "building", "office", "headquarters", "store",
		"warehouse", "plant", "campus", "floor", "room", "suite",
		"apartment", "street", "road", "avenue", "boulevard", "lane",
		"drive", "way", "court", "circle", "plaza", "square", "zip",
		"zipcode", "postal", "postcode", "mailcode", "coordinates",
		"latitude", "longitude", "lat", "lng", "home", "work", "shipping",
		"billing", "mailing",
	),
}

func setOf(terms ...string) map[string]bool {
	m := make(map[string]bool, len(terms))
	for _, t := range terms {
		m[t] = true
	}
	return m
}

// entityPatterns are the regex fallback used only when no gazetteer term
// matched, covering phrasing the gazetteer's exact-term lookup misses.
var entityPatterns = map[EntityKind][]*regexp.Regexp{
	EntityPerson: {
		regexp.MustCompile(`(?i)\b(?:first|last|full|given|family)_?names?\b`),
		regexp.MustCompile(`(?i)\b(?:customer|user|employee|contact|person|client|member|owner)_?names?\b`),
		regexp.MustCompile(`(?i)\b(?:author|creator|manager|supervisor|admin)_?names?\b`),
		regexp.MustCompile(`(?i)\bnames?\b`),
		regexp.MustCompile(`\b(?:user|customer|employee|person|contact)_?ids?\b`),
	},
	EntityOrg: {
		regexp.MustCompile(`(?i)\b(?:company|corp|corporation|organization|business)_?names?\b`),
		regexp.MustCompile(`(?i)\b\w+_?(?:inc|corp|llc|ltd|co|plc)\b`),
		regexp.MustCompile(`(?i)\b(?:vendor|supplier|client|partner|contractor)_?names?\b`),
		regexp.MustCompile(`(?i)\b(?:dept|department|division|unit|agency|firm)_?names?\b`),
		regexp.MustCompile(`(?i)\b(?:company|vendor|supplier|client|partner|org)_?ids?\b`),
	},
	EntityGPE: {
		regexp.MustCompile(`(?i)\b(?:country|state|province|region|territory)_?(?:names?|codes?)?\b`),
		regexp.MustCompile(`(?i)\b(?:city|town|municipality|county|district)_?names?\b`),
		regexp.MustCompile(`(?i)\bnationality\b`),
		regexp.MustCompile(`(?i)\bcitizenship\b`),
		regexp.MustCompile(`(?i)\b(?:birth|origin)_?(?:country|state|city)\b`),
	},
	EntityLoc: {
		regexp.MustCompile(`(?i)\b(?:address|location|place|position|site)_?(?:names?)?\b`),
		regexp.MustCompile(`(?i)\b(?:street|road|avenue|blvd|lane|drive|way)_?(?:names?)?\b`),
		regexp.MustCompile(`(?i)\b(?:zip|postal)_?codes?\b`),
		regexp.MustCompile(`(?i)\b(?:building|office|facility|warehouse|store)_?(?:names?)?\b`),
		regexp.MustCompile(`(?i)\b(?:coordinates|latitude|longitude|lat|lng)\b`),
		regexp.MustCompile(`(?i)\b(?:home|work|shipping|billing|mailing)_?(?:address|location)\b`),
	},
}

// entityKindOrder fixes iteration order over the above maps so results are
// deterministic across runs.
var entityKindOrder = []EntityKind{EntityPerson, EntityOrg, EntityGPE, EntityLoc}

var nonIdentChars = regexp.MustCompile(`[^a-z0-9_]`)

// EntityRecognizer tags column names with semantic entity kinds using a
// gazetteer lookup first, falling back to regex patterns only when the
// gazetteer found nothing. This two-tier design keeps per-column recognition
// fast enough to run over every column in a large schema during background
// enrichment.
type EntityRecognizer struct{}

// NewEntityRecognizer returns a ready-to-use EntityRecognizer. It holds no
// state; the type exists so call sites read the same way reflection and
// embedding components do.
func NewEntityRecognizer() *EntityRecognizer {
	return &EntityRecognizer{}
}

// Recognize extracts entity kinds implied by a column name.
func (EntityRecognizer) Recognize(columnName string) []string {
	if columnName == "" {
		return nil
	}
	lower := strings.ToLower(strings.TrimSpace(columnName))
	normalized := nonIdentChars.ReplaceAllString(lower, "_")

	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ReplaceAll(normalized, "_", " ")) {
		words[w] = true
	}
	for _, w := range strings.Split(normalized, "_") {
		if w != "" {
			words[w] = true
		}
	}
	words[normalized] = true

	var found []string
	for _, kind := range entityKindOrder {
		gaz := gazetteers[kind]
		for term := range words {
			if gaz[term] {
				found = append(found, string(kind))
				break
			}
		}
	}
	if len(found) == 0 {
		for _, kind := range entityKindOrder {
			for _, pat := range entityPatterns[kind] {
				if pat.MatchString(lower) || pat.MatchString(columnName) {
					found = append(found, string(kind))
					break
				}
			}
		}
	}

	for _, m := range recognizeGeo(columnName) {
		found = append(found, m.Kind+":"+m.Canonical)
	}
	return found
}

// AnnotateTable fills Entities on every column of a table (and the union on
// the table itself) in place.
func (r EntityRecognizer) AnnotateTable(table *TableProfile) {
	seen := make(map[string]bool)
	for _, col := range table.Columns {
		col.Entities = r.Recognize(col.Name)
		for _, e := range col.Entities {
			seen[e] = true
		}
	}
	table.Entities = table.Entities[:0]
	for _, kind := range entityKindOrder {
		if seen[string(kind)] {
			table.Entities = append(table.Entities, string(kind))
			delete(seen, string(kind))
		}
	}
	var geoTags []string
	for tag := range seen {
		geoTags = append(geoTags, tag)
	}
	sort.Strings(geoTags)
	table.Entities = append(table.Entities, geoTags...)
}
