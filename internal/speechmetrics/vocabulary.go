package speechmetrics

import "strings"

// roleVocabularies maps a normalized job role to its domain terms
var roleVocabularies = map[string][]string{
	"software engineer": {
		"api", "algorithm", "architecture", "cache", "ci", "cd", "concurrency",
		"database", "debugging", "deployment", "docker", "git", "kubernetes",
		"latency", "microservices", "refactoring", "scalability", "sql",
		"testing", "unit test", "code review", "design pattern", "load balancer",
	},
	"backend engineer": {
		"api", "rest", "grpc", "database", "index", "transaction", "queue",
		"cache", "redis", "postgres", "sharding", "replication", "latency",
		"throughput", "idempotent", "rate limit", "microservices",
	},
	"frontend engineer": {
		"react", "javascript", "typescript", "css", "html", "dom", "component",
		"state management", "accessibility", "responsive", "bundle", "webpack",
		"rendering", "performance", "browser",
	},
	"data scientist": {
		"regression", "classification", "model", "feature", "training",
		"overfitting", "cross validation", "dataset", "python", "pandas",
		"statistics", "hypothesis", "a/b test", "precision", "recall",
		"machine learning", "neural network",
	},
	"devops engineer": {
		"ci", "cd", "pipeline", "terraform", "kubernetes", "docker", "helm",
		"monitoring", "alerting", "prometheus", "incident", "on-call",
		"infrastructure as code", "aws", "gcp", "azure", "sre", "slo",
	},
	"product manager": {
		"roadmap", "stakeholder", "prioritization", "metrics", "kpi", "okr",
		"user research", "mvp", "backlog", "sprint", "customer", "market",
		"a/b test", "retention", "conversion",
	},
}

// genericVocabulary applies to roles without a dedicated list
var genericVocabulary = []string{
	"team", "project", "deadline", "stakeholder", "metrics", "impact",
	"ownership", "communication", "collaboration", "process", "feedback",
}

// Vocabulary returns the domain terms for role. Unknown roles get a
// generic list.
func Vocabulary(role string) []string {
	terms, ok := roleVocabularies[strings.ToLower(strings.TrimSpace(role))]
	if !ok {
		terms = genericVocabulary
	}
	out := make([]string, len(terms))
	copy(out, terms)
	return out
}

// MergeVocabulary returns the role vocabulary plus extra terms, deduplicated
// case-insensitively with the first spelling kept.
func MergeVocabulary(role string, extra ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, term := range append(Vocabulary(role), extra...) {
		key := strings.ToLower(strings.TrimSpace(term))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, term)
	}
	return out
}
