package questions

import (
	"time"

	"github.com/lexiqai/voice-interview/internal/interview"
)

// Static returns the built-in question bank
func Static() *BankSource {
	src, err := NewBankSource(builtin())
	if err != nil {
		panic(err)
	}
	return src
}

func builtin() Bank {
	return Bank{
		"general": {
			{ID: "gen-1", Type: interview.QuestionGeneral, Difficulty: "easy", TimeLimit: 2 * time.Minute,
				Text:             "Tell me about yourself and what brings you to this role.",
				ExpectedKeywords: []string{"experience", "team", "project"}},
			{ID: "gen-2", Type: interview.QuestionBehavioral, Difficulty: "medium", TimeLimit: 3 * time.Minute,
				Text:             "Describe a time you disagreed with a teammate. How did you resolve it?",
				ExpectedKeywords: []string{"listened", "compromise", "outcome"}},
			{ID: "gen-3", Type: interview.QuestionSituational, Difficulty: "medium", TimeLimit: 3 * time.Minute,
				Text:             "You have two urgent deadlines on the same day. What do you do?",
				ExpectedKeywords: []string{"prioritize", "communicate", "stakeholders"}},
			{ID: "gen-4", Type: interview.QuestionBehavioral, Difficulty: "medium", TimeLimit: 3 * time.Minute,
				Text:             "Tell me about a mistake you made at work and what you learned from it.",
				ExpectedKeywords: []string{"responsibility", "learned", "changed"}},
			{ID: "gen-5", Type: interview.QuestionGeneral, Difficulty: "easy", TimeLimit: 2 * time.Minute,
				Text:             "Where do you see yourself growing over the next two years?",
				ExpectedKeywords: []string{"skills", "goals", "growth"}},
		},
		"software engineer": {
			{ID: "swe-1", Type: interview.QuestionGeneral, Difficulty: "easy", TimeLimit: 2 * time.Minute,
				Text:             "Walk me through a project you are proud of.",
				ExpectedKeywords: []string{"architecture", "tradeoff", "impact"}},
			{ID: "swe-2", Type: interview.QuestionTechnical, Difficulty: "medium", TimeLimit: 4 * time.Minute,
				Text:             "How would you find and fix a memory leak in a long running service?",
				ExpectedKeywords: []string{"profiling", "heap", "reproduce", "monitoring"}},
			{ID: "swe-3", Type: interview.QuestionTechnical, Difficulty: "medium", TimeLimit: 4 * time.Minute,
				Text:             "Explain the difference between a process and a thread.",
				ExpectedKeywords: []string{"memory", "scheduling", "concurrency"}},
			{ID: "swe-4", Type: interview.QuestionBehavioral, Difficulty: "medium", TimeLimit: 3 * time.Minute,
				Text:             "Tell me about a code review that changed how you write code.",
				ExpectedKeywords: []string{"feedback", "readability", "testing"}},
			{ID: "swe-5", Type: interview.QuestionSituational, Difficulty: "hard", TimeLimit: 4 * time.Minute,
				Text:             "A release broke production an hour ago. Walk me through your response.",
				ExpectedKeywords: []string{"rollback", "incident", "postmortem", "communicate"}},
		},
		"backend engineer": {
			{ID: "be-1", Type: interview.QuestionTechnical, Difficulty: "medium", TimeLimit: 4 * time.Minute,
				Text:             "How would you design a rate limiter for a public API?",
				ExpectedKeywords: []string{"token bucket", "redis", "sliding window"}},
			{ID: "be-2", Type: interview.QuestionTechnical, Difficulty: "medium", TimeLimit: 4 * time.Minute,
				Text:             "When would you choose a message queue over a synchronous call?",
				ExpectedKeywords: []string{"decoupling", "retry", "backpressure", "idempotent"}},
			{ID: "be-3", Type: interview.QuestionTechnical, Difficulty: "hard", TimeLimit: 5 * time.Minute,
				Text:             "How do you keep a cache consistent with the database?",
				ExpectedKeywords: []string{"invalidation", "ttl", "write through"}},
			{ID: "be-4", Type: interview.QuestionBehavioral, Difficulty: "medium", TimeLimit: 3 * time.Minute,
				Text:             "Describe an outage you helped resolve.",
				ExpectedKeywords: []string{"monitoring", "root cause", "postmortem"}},
			{ID: "be-5", Type: interview.QuestionSituational, Difficulty: "hard", TimeLimit: 4 * time.Minute,
				Text:             "A query that used to take 10 milliseconds now takes 2 seconds. What do you check?",
				ExpectedKeywords: []string{"index", "query plan", "locks"}},
		},
		"frontend engineer": {
			{ID: "fe-1", Type: interview.QuestionTechnical, Difficulty: "medium", TimeLimit: 4 * time.Minute,
				Text:             "How would you improve the load time of a slow single page app?",
				ExpectedKeywords: []string{"bundle", "lazy loading", "caching"}},
			{ID: "fe-2", Type: interview.QuestionTechnical, Difficulty: "medium", TimeLimit: 4 * time.Minute,
				Text:             "How do you manage shared state in a large frontend application?",
				ExpectedKeywords: []string{"state", "component", "store"}},
			{ID: "fe-3", Type: interview.QuestionTechnical, Difficulty: "easy", TimeLimit: 3 * time.Minute,
				Text:             "What does accessibility mean for the components you build?",
				ExpectedKeywords: []string{"accessibility", "keyboard", "screen reader"}},
			{ID: "fe-4", Type: interview.QuestionBehavioral, Difficulty: "medium", TimeLimit: 3 * time.Minute,
				Text:             "Tell me about working with a designer on a difficult feature.",
				ExpectedKeywords: []string{"collaboration", "prototype", "feedback"}},
		},
		"data scientist": {
			{ID: "ds-1", Type: interview.QuestionTechnical, Difficulty: "medium", TimeLimit: 4 * time.Minute,
				Text:             "How do you detect and handle overfitting?",
				ExpectedKeywords: []string{"validation", "regularization", "cross validation"}},
			{ID: "ds-2", Type: interview.QuestionTechnical, Difficulty: "medium", TimeLimit: 4 * time.Minute,
				Text:             "How would you design an experiment to test a new recommendation model?",
				ExpectedKeywords: []string{"a/b test", "metric", "significance"}},
			{ID: "ds-3", Type: interview.QuestionBehavioral, Difficulty: "medium", TimeLimit: 3 * time.Minute,
				Text:             "Tell me about explaining a model result to a non technical audience.",
				ExpectedKeywords: []string{"visualization", "business", "simplify"}},
		},
		"devops engineer": {
			{ID: "ops-1", Type: interview.QuestionTechnical, Difficulty: "medium", TimeLimit: 4 * time.Minute,
				Text:             "How would you roll out a change to a hundred services safely?",
				ExpectedKeywords: []string{"canary", "rollback", "monitoring"}},
			{ID: "ops-2", Type: interview.QuestionTechnical, Difficulty: "medium", TimeLimit: 4 * time.Minute,
				Text:             "What belongs in a good alert, and what does not?",
				ExpectedKeywords: []string{"actionable", "slo", "on call"}},
			{ID: "ops-3", Type: interview.QuestionSituational, Difficulty: "hard", TimeLimit: 4 * time.Minute,
				Text:             "A node in your cluster keeps running out of disk. How do you investigate?",
				ExpectedKeywords: []string{"logs", "metrics", "retention"}},
		},
		"product manager": {
			{ID: "pm-1", Type: interview.QuestionSituational, Difficulty: "medium", TimeLimit: 3 * time.Minute,
				Text:             "How do you decide what goes into the next release?",
				ExpectedKeywords: []string{"prioritization", "customer", "impact"}},
			{ID: "pm-2", Type: interview.QuestionBehavioral, Difficulty: "medium", TimeLimit: 3 * time.Minute,
				Text:             "Tell me about a feature you shipped that did not work out.",
				ExpectedKeywords: []string{"metrics", "learned", "iterate"}},
			{ID: "pm-3", Type: interview.QuestionGeneral, Difficulty: "easy", TimeLimit: 2 * time.Minute,
				Text:             "How do you work with engineering when estimates slip?",
				ExpectedKeywords: []string{"scope", "tradeoff", "communicate"}},
		},
	}
}
