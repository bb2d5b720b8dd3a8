package classify

import "strings"

// InferRegion returns the region code for a locality string. An exact match wins;
// otherwise the first table entry contained in the string is used, in declared
// order. Unknown localities yield "".
func (t *Tables) InferRegion(locality string) string {
	key := strings.ToLower(strings.TrimSpace(locality))
	if key == "" {
		return ""
	}
	if region, ok := t.localityIdx[key]; ok {
		return region
	}
	for _, entry := range t.localities {
		if strings.Contains(key, entry.name) {
			return entry.region
		}
	}
	return ""
}

// RegionName resolves a region code to its display name. ok is false for blank
// or unmapped codes.
func (t *Tables) RegionName(code string) (string, bool) {
	name, ok := t.regionNames[strings.ToUpper(strings.TrimSpace(code))]
	return name, ok
}

var regionDisplayNames = map[string]string{
	"ON":  "Ontario",
	"QC":  "Quebec",
	"BC":  "British Columbia",
	"AB":  "Alberta",
	"SK":  "Saskatchewan",
	"MB":  "Manitoba",
	"NS":  "Nova Scotia",
	"NB":  "New Brunswick",
	"NL":  "Newfoundland and Labrador",
	"PEI": "Prince Edward Island",
	"YT":  "Yukon",
	"NT":  "Northwest Territories",
	"NU":  "Nunavut",
}

// Declared order matters for substring fallback.
var localityRegions = []localityEntry{
	{"toronto", "ON"}, {"hamilton", "ON"}, {"ottawa", "ON"}, {"london", "ON"}, {"kingston", "ON"},
	{"windsor", "ON"}, {"brampton", "ON"}, {"mississauga", "ON"}, {"barrie", "ON"}, {"guelph", "ON"},
	{"kitchener", "ON"}, {"waterloo", "ON"}, {"sudbury", "ON"}, {"thunder bay", "ON"}, {"ontario", "ON"},
	{"oshawa", "ON"}, {"markham", "ON"}, {"oakville", "ON"}, {"burlington", "ON"}, {"st. catharines", "ON"},

	{"montreal", "QC"}, {"montréal", "QC"}, {"quebec", "QC"}, {"québec", "QC"}, {"laval", "QC"},
	{"sherbrooke", "QC"}, {"gatineau", "QC"}, {"trois-rivieres", "QC"}, {"saguenay", "QC"},
	{"quebec city", "QC"}, {"longueuil", "QC"}, {"rimouski", "QC"}, {"rouyn-noranda", "QC"}, {"sept-iles", "QC"},

	{"vancouver", "BC"}, {"victoria", "BC"}, {"kelowna", "BC"}, {"surrey", "BC"}, {"burnaby", "BC"},
	{"abbotsford", "BC"}, {"kamloops", "BC"}, {"nanaimo", "BC"}, {"british columbia", "BC"},
	{"prince george", "BC"}, {"chilliwack", "BC"}, {"langley", "BC"}, {"richmond", "BC"}, {"trail", "BC"},

	{"calgary", "AB"}, {"edmonton", "AB"}, {"red deer", "AB"}, {"lethbridge", "AB"}, {"alberta", "AB"},
	{"grande prairie", "AB"}, {"airdrie", "AB"}, {"medicine hat", "AB"}, {"banff", "AB"},

	{"saskatoon", "SK"}, {"regina", "SK"}, {"saskatchewan", "SK"}, {"moose jaw", "SK"}, {"prince albert", "SK"},

	{"winnipeg", "MB"}, {"brandon", "MB"}, {"manitoba", "MB"}, {"steinbach", "MB"}, {"thompson", "MB"},

	{"halifax", "NS"}, {"dartmouth", "NS"}, {"nova scotia", "NS"}, {"cape breton", "NS"}, {"truro", "NS"},

	{"saint john", "NB"}, {"moncton", "NB"}, {"fredericton", "NB"}, {"new brunswick", "NB"}, {"bathurst", "NB"},

	{"st. john's", "NL"}, {"corner brook", "NL"}, {"newfoundland", "NL"}, {"labrador city", "NL"},

	{"charlottetown", "PEI"}, {"prince edward island", "PEI"}, {"summerside", "PEI"},

	{"whitehorse", "YT"}, {"yukon", "YT"},

	{"yellowknife", "NT"}, {"northwest territories", "NT"},

	{"iqaluit", "NU"}, {"nunavut", "NU"},
}
