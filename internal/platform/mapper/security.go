package mapper

import "regexp"

// ============================================================================
// Expression security scanner
// ============================================================================
//
// A static denylist scan run once per mapping, at load time, against every
// condition and transform expression. It classifies suspicious expression
// text by category and severity; a single critical match vetoes the whole
// mapping. This is defense-in-depth only -- the evaluator's closed
// capability set is the real boundary, since text scanning can always be
// dodged by encoding tricks.

// Severity ranks a scanner finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// SecurityIssue is one scanner finding against one expression.
type SecurityIssue struct {
	FieldID    string   `json:"fieldId"`
	Expression string   `json:"expression"`
	Category   string   `json:"category"`
	Severity   Severity `json:"severity"`
	Detail     string   `json:"detail"`
}

type securitySignature struct {
	category string
	severity Severity
	detail   string
	pattern  *regexp.Regexp
}

// securityDenylist is the versioned taxonomy of forbidden signatures. Order
// matters only for reporting; every signature is checked against every
// expression.
var securityDenylist = []securitySignature{
	{
		category: "process-execution",
		severity: SeverityCritical,
		detail:   "process or runtime execution",
		pattern:  regexp.MustCompile(`(?i)\b(Runtime|ProcessBuilder|exec\.Command|os/exec|syscall)\b`),
	},
	{
		category: "process-execution",
		severity: SeverityCritical,
		detail:   "shell invocation",
		pattern:  regexp.MustCompile(`(?i)\b(system|popen|sh\s+-c|bash\s+-c|cmd\.exe)\b`),
	},
	{
		category: "reflection",
		severity: SeverityCritical,
		detail:   "reflection or dynamic loading",
		pattern:  regexp.MustCompile(`(?i)\b(getClass|forName|ClassLoader|reflect\.|Class\.)\b`),
	},
	{
		category: "script-engine",
		severity: SeverityCritical,
		detail:   "nested script engine access",
		pattern:  regexp.MustCompile(`(?i)(ScriptEngine|\beval\s*\(|javascript:|\bnashorn\b|\bgraaljs\b)`),
	},
	{
		category: "filesystem",
		severity: SeverityHigh,
		detail:   "filesystem access",
		pattern:  regexp.MustCompile(`(?i)\b(java\.io|FileReader|FileWriter|FileInputStream|os\.Open|ioutil|ReadFile|WriteFile)\b`),
	},
	{
		category: "filesystem",
		severity: SeverityHigh,
		detail:   "path traversal",
		pattern:  regexp.MustCompile(`\.\./|\.\.\\`),
	},
	{
		category: "network",
		severity: SeverityHigh,
		detail:   "network access",
		pattern:  regexp.MustCompile(`(?i)\b(java\.net|URLConnection|HttpClient|Socket|net\.Dial|http\.Get|http\.Post)\b`),
	},
	{
		category: "database",
		severity: SeverityHigh,
		detail:   "database access",
		pattern:  regexp.MustCompile(`(?i)\b(java\.sql|DriverManager|jdbc:|DataSource|sql\.Open)\b`),
	},
	{
		category: "environment",
		severity: SeverityMedium,
		detail:   "environment or system property access",
		pattern:  regexp.MustCompile(`(?i)\b(getenv|System\.getProperty|os\.Environ)\b`),
	},
	{
		category: "thread",
		severity: SeverityLow,
		detail:   "thread or sleep primitives",
		pattern:  regexp.MustCompile(`(?i)\b(Thread|sleep\s*\(|wait\s*\()`),
	},
}

// ScanMapping scans every condition and transform expression in the mapping.
// All findings are returned for reporting; if any finding is critical the
// returned error is a SecurityError and the mapping must be refused.
func ScanMapping(m *Mapping) ([]SecurityIssue, error) {
	var issues []SecurityIssue
	for _, field := range m.FieldMappings {
		issues = append(issues, scanExpression(field.ID, field.Condition)...)
		issues = append(issues, scanExpression(field.ID, field.TransformExpression)...)
	}

	var critical []SecurityIssue
	for _, issue := range issues {
		if issue.Severity == SeverityCritical {
			critical = append(critical, issue)
		}
	}
	if len(critical) > 0 {
		return issues, &SecurityError{MappingID: m.ID, Issues: critical}
	}
	return issues, nil
}

func scanExpression(fieldID, expression string) []SecurityIssue {
	if expression == "" {
		return nil
	}
	var issues []SecurityIssue
	for _, sig := range securityDenylist {
		if sig.pattern.MatchString(expression) {
			issues = append(issues, SecurityIssue{
				FieldID:    fieldID,
				Expression: expression,
				Category:   sig.category,
				Severity:   sig.severity,
				Detail:     sig.detail,
			})
		}
	}
	return issues
}
