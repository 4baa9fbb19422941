package biz

import (
	"regexp"
	"strings"

	"github.com/kart-io/legal-rag/internal/pkg/rag/textutil"
)

// 法律概念分类。
const (
	ConceptObligations          = "obligations"
	ConceptRights               = "rights"
	ConceptDefinitions          = "definitions"
	ConceptTermination          = "termination"
	ConceptLiability            = "liability"
	ConceptConfidentiality      = "confidentiality"
	ConceptPayment              = "payment"
	ConceptDispute              = "dispute"
	ConceptIntellectualProperty = "intellectual_property"
	ConceptForceMajeure         = "force_majeure"
	ConceptWarranties           = "warranties"
	ConceptAmendments           = "amendments"
)

type conceptGroup struct {
	name     string
	keywords []string
}

// conceptLexicon 按固定顺序排列。以 * 结尾的关键词按词干前缀匹配。
var conceptLexicon = []conceptGroup{
	{ConceptObligations, []string{"must", "shall", "required to", "obligat*", "duty to", "duties", "responsible for"}},
	{ConceptRights, []string{"right to", "rights", "entitled", "permission to", "authori*", "allowed to"}},
	{ConceptDefinitions, []string{"means", "defined as", "refers to", "definition*", "define*", "meaning"}},
	{ConceptTermination, []string{"terminat*", "expir*", "dissolution", "cancel*", "end of the term"}},
	{ConceptLiability, []string{"liab*", "damages", "indemn*", "compensat*"}},
	{ConceptConfidentiality, []string{"confidential*", "non-disclosure", "nda", "proprietary", "secrecy"}},
	{ConceptPayment, []string{"pay", "payment*", "paid", "fee", "fees", "invoice*", "remuneration", "salary", "price"}},
	{ConceptDispute, []string{"dispute*", "arbitrat*", "litigation", "mediation", "court*"}},
	{ConceptIntellectualProperty, []string{"intellectual property", "copyright*", "trademark*", "patent*", "trade secret*", "ip", "licen*"}},
	{ConceptForceMajeure, []string{"force majeure", "act of god", "acts of god", "unforeseeable", "beyond control", "beyond its reasonable control"}},
	{ConceptWarranties, []string{"warrant*", "guarantee*", "represents", "representation*", "assurance*"}},
	{ConceptAmendments, []string{"amend*", "modif*", "revis*", "alteration*", "variation*"}},
}

// ConceptNames 返回全部概念名，顺序固定。
func ConceptNames() []string {
	names := make([]string, len(conceptLexicon))
	for i, g := range conceptLexicon {
		names[i] = g.name
	}
	return names
}

// DetectConcepts 返回 text 命中的法律概念，按词表顺序。
func DetectConcepts(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	tokens := textutil.Tokenize(text)
	var out []string
	for _, g := range conceptLexicon {
		for _, kw := range g.keywords {
			if matchKeyword(text, tokens, kw) {
				out = append(out, g.name)
				break
			}
		}
	}
	return out
}

// ConceptLabel 把概念名转换为可读文本，如 force_majeure -> force majeure。
func ConceptLabel(concept string) string {
	return strings.ReplaceAll(concept, "_", " ")
}

// conceptQueryTerms 返回概念名及其首个非词干关键词，用于构造检索文本。
func conceptQueryTerms(concept string) []string {
	terms := []string{ConceptLabel(concept)}
	for _, g := range conceptLexicon {
		if g.name != concept {
			continue
		}
		for _, kw := range g.keywords {
			if !strings.HasSuffix(kw, "*") && len(kw) > 3 {
				terms = append(terms, kw)
				break
			}
		}
	}
	return terms
}

func matchKeyword(text string, tokens []string, kw string) bool {
	if stem, ok := strings.CutSuffix(kw, "*"); ok {
		for _, tok := range tokens {
			if strings.HasPrefix(tok, stem) {
				return true
			}
		}
		return false
	}
	return textutil.ContainsWord(text, kw)
}

// relatedConcepts 用于生成 "Find X related to Y" 类建议。
var relatedConcepts = map[string]string{
	ConceptObligations:          ConceptLiability,
	ConceptRights:               ConceptTermination,
	ConceptDefinitions:          ConceptObligations,
	ConceptTermination:          ConceptLiability,
	ConceptLiability:            ConceptWarranties,
	ConceptConfidentiality:      ConceptIntellectualProperty,
	ConceptPayment:              ConceptTermination,
	ConceptDispute:              ConceptTermination,
	ConceptIntellectualProperty: ConceptConfidentiality,
	ConceptForceMajeure:         ConceptTermination,
	ConceptWarranties:           ConceptLiability,
	ConceptAmendments:           ConceptObligations,
}

// legalSynonyms 查询扩展同义词表，键为整词匹配的术语。
var legalSynonyms = []struct {
	term     string
	synonyms []string
}{
	{"contract", []string{"agreement", "compact", "accord", "covenant"}},
	{"agreement", []string{"contract", "accord", "arrangement"}},
	{"clause", []string{"provision", "section", "article", "term"}},
	{"obligation", []string{"duty", "responsibility", "requirement", "commitment"}},
	{"termination", []string{"cancellation", "dissolution", "expiry", "ending"}},
	{"liability", []string{"responsibility", "accountability", "obligation"}},
	{"breach", []string{"violation", "default", "failure", "infringement"}},
	{"amendment", []string{"modification", "change", "revision", "alteration"}},
	{"confidentiality", []string{"secrecy", "non-disclosure", "privacy"}},
	{"intellectual property", []string{"ip", "patent", "copyright", "trademark"}},
	{"indemnification", []string{"compensation", "reimbursement", "indemnity"}},
	{"force majeure", []string{"act of god", "unforeseeable circumstances", "extraordinary event"}},
	{"warranty", []string{"guarantee", "assurance", "representation"}},
	{"payment", []string{"remuneration", "compensation", "fee"}},
	{"dispute", []string{"disagreement", "controversy", "conflict"}},
	{"nda", []string{"non-disclosure agreement", "confidentiality agreement"}},
}

// intentExpansions 按意图追加的限定词。
var intentExpansions = map[Intent][]string{
	IntentDefinition: {"definition", "meaning"},
	IntentProcedure:  {"process", "requirements"},
	IntentTemporal:   {"deadline", "period"},
}

// intentChunkTypes 意图期望的块类型。
var intentChunkTypes = map[Intent][]string{
	IntentDefinition: {"definition"},
	IntentProcedure:  {"clause", "paragraph"},
	IntentTemporal:   {"clause", "paragraph"},
}

var (
	definitionCues = []string{"what is", "what does", "means", "meaning", "meaning of", "defined as", "define", "definition"}
	procedureCues  = []string{"how to", "how do", "how does", "how can", "how should", "how is", "how are", "process", "steps", "procedure"}
	temporalCues   = []string{"when", "deadline", "how long", "duration", "until", "by when", "within"}
)

var (
	partyRoles = []string{
		"licensor", "licensee", "buyer", "seller", "supplier", "customer", "client", "vendor",
		"contractor", "employer", "employee", "landlord", "tenant", "lessor", "lessee",
		"disclosing party", "receiving party",
	}
	// 较长的名称在前，被已命中名称包含的短名称会被跳过。
	jurisdictionNames = []string{
		"England and Wales", "United Kingdom", "United States", "European Union", "Hong Kong", "New York",
		"England", "Scotland", "Delaware", "California", "Texas", "Florida", "Illinois",
		"Ontario", "Singapore", "Ireland", "Germany", "France", "Australia", "India",
	}
	documentWords = []string{
		"agreement", "contract", "addendum", "amendment", "schedule", "exhibit", "annex",
		"appendix", "policy", "nda", "lease", "license", "memorandum",
	}
	periodWords = []string{"notice period", "initial term", "renewal term", "term", "period", "duration", "renewal"}
)

var (
	companyRegex = regexp.MustCompile(`\b([A-Z][A-Za-z&]*(?:\s+[A-Z][A-Za-z&]*)*)\s+(Ltd|Inc|LLC|LLP|PLC|Corp|Corporation|Limited|GmbH)\b\.?`)
	namedPartyRe = regexp.MustCompile(`\b(?:[Tt]he\s+)?((?:[A-Z][a-z]+\s+)+)Party\b`)
	dateRegexes  = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?\s+(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{4}\b`),
	}
	durationRegex = regexp.MustCompile(`(?i)\b(?:\d+|one|two|three|four|five|six|seven|ten|twelve|fourteen|thirty|sixty|ninety)\s+(?:\(\d+\)\s+)?(?:business\s+|calendar\s+|working\s+)?(?:day|week|month|year)s?\b`)
	sectionRegex  = regexp.MustCompile(`(?i)\b(?:section|clause|article|schedule|exhibit)\s+\d+(?:\.\d+)*\b`)
)

// C.4 法律分析词表。
var (
	riskTerms = []string{
		"penalty", "fine", "damages", "breach", "default", "termination",
		"liability", "indemnification", "unlimited", "consequential",
	}
	complianceTerms = []string{"comply", "regulation", "statute", "law", "requirement", "mandatory", "shall", "must"}
	ambiguityTerms  = []string{"reasonable", "appropriate", "substantial", "material", "promptly", "timely", "best efforts"}
)

// 问题类型按顺序比较，命中数相同取先出现者。
var questionTypeCues = []struct {
	name string
	cues []string
}{
	{"definition", []string{"what is", "define", "meaning of", "definition of", "means"}},
	{"obligation", []string{"must", "required to", "obligated to", "responsible for", "shall", "obligation", "obligations"}},
	{"rights", []string{"entitled to", "allowed to", "right to", "rights", "can"}},
	{"procedure", []string{"how to", "process for", "steps to", "procedure", "how do", "how does"}},
	{"comparison", []string{"difference between", "compare", "versus", "vs", "differ"}},
	{"consequence", []string{"what happens if", "penalty for", "result of", "consequence", "consequences"}},
}

// patternMarkers 证据句中的法律模式标记。
var patternMarkers = []struct {
	category string
	markers  []string
}{
	{"obligation", []string{"shall", "must", "is required to", "agrees to", "undertakes to"}},
	{"right", []string{"may", "is entitled to", "has the right to", "reserves the right"}},
	{"definition", []string{"means", "is defined as", "refers to", "shall mean"}},
	{"termination", []string{"terminate", "termination", "expire", "expiry"}},
	{"liability", []string{"liable", "liability", "indemnify", "damages"}},
	{"confidentiality", []string{"confidential", "non-disclosure", "not disclose"}},
	{"payment", []string{"pay", "payment", "fee", "invoice"}},
	{"dispute", []string{"dispute", "arbitration", "court", "mediation"}},
}

// containsAny 返回 text 中整词命中的 terms，保持 terms 顺序。
func containsAny(text string, terms []string) []string {
	var out []string
	for _, t := range terms {
		if textutil.ContainsWord(text, t) {
			out = append(out, t)
		}
	}
	return out
}
