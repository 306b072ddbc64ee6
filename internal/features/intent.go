package features

import (
	"regexp"
	"strings"

	"github.com/promptpilot/ai-router/internal/types"
)

// intentRule couples an intent with its lexical cues. Rules are evaluated in
// a fixed priority order: the first rule with a match wins, so a prompt that
// mentions both a currency symbol and a cryptocurrency name resolves to the
// higher-priority intent deterministically.
type intentRule struct {
	intent   types.Intent
	keywords []string
	patterns []*regexp.Regexp
}

// intentPriority is the reviewed tie-break order for overlapping categories.
// Reordering this list is a semantic change, not a refactor.
func defaultIntentRules() []intentRule {
	return []intentRule{
		{
			intent: types.IntentCrypto,
			keywords: []string{
				"bitcoin", "btc", "ethereum", "eth", "solana", "crypto",
				"cryptocurrency", "blockchain", "defi", "altcoin", "stablecoin",
			},
		},
		{
			intent: types.IntentFinance,
			keywords: []string{
				"stock", "stocks", "portfolio", "invest", "investment",
				"dividend", "interest rate", "mortgage", "loan", "budget",
				"tax", "taxes", "etf", "bond",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`[$€£¥]\s?\d`),
			},
		},
		{
			intent: types.IntentCode,
			keywords: []string{
				"code", "function", "debug", "compile", "refactor", "bug",
				"api", "endpoint", "implement", "script", "regex", "sql",
				"python", "golang", "javascript", "typescript", "stack trace",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile("```"),
				regexp.MustCompile(`\bfunc\s+\w+\(`),
				regexp.MustCompile(`\bdef\s+\w+\(`),
			},
		},
		{
			intent: types.IntentLegal,
			keywords: []string{
				"contract", "clause", "liability", "lawsuit", "legal",
				"compliance", "gdpr", "terms of service", "nda", "statute",
			},
		},
		{
			intent: types.IntentMedical,
			keywords: []string{
				"symptom", "symptoms", "diagnosis", "medication", "dosage",
				"treatment", "disease", "medical", "prescription",
			},
		},
		{
			intent: types.IntentCreative,
			keywords: []string{
				"story", "poem", "song", "lyrics", "novel", "screenplay",
				"creative", "brainstorm", "slogan", "tagline",
			},
		},
		{
			intent: types.IntentTranslation,
			keywords: []string{
				"translate", "translation", "in spanish", "in french",
				"in german", "in japanese", "to english",
			},
		},
		{
			intent: types.IntentSummarization,
			keywords: []string{
				"summarize", "summarise", "summary", "tl;dr", "tldr",
				"key points", "condense",
			},
		},
		{
			intent: types.IntentDataExtraction,
			keywords: []string{
				"extract", "parse", "csv", "json", "structured data",
				"fields from", "scrape", "table of",
			},
		},
	}
}

// Classify resolves a prompt to exactly one primary intent. Unknown or
// ambiguous input falls through to general chat. The priority order of the
// rule table is the tie-break policy.
func (e *Extractor) Classify(text string) types.Intent {
	lower := strings.ToLower(text)
	for _, rule := range e.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.intent
			}
		}
		for _, re := range rule.patterns {
			if re.MatchString(text) {
				return rule.intent
			}
		}
	}
	return types.IntentGeneralChat
}
