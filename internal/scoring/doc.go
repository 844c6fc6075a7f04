// Package scoring maps a checklist schema and one encounter's answers to
// per-node (score, maxScore) pairs and derived KPIs.
//
// A pass is pure and synchronous. Items that do not apply to the encounter
// are excluded from both score and maxScore; items answered "na" or left
// unanswered are excluded as well. Faults in relevance rules or answers never
// abort a pass: the affected node is treated as not relevant and a
// Diagnostic is attached to the Result.
package scoring
