package gateway

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/statuswatch/statuswatch/pkg/utils"
)

var (
	startsWithSelect = regexp.MustCompile(`(?i)^\s*(select|with)\b`)

	// Whole-word scan over the entire statement, subqueries included. String
	// literals and comments are not parsed, so a forbidden verb inside a
	// quoted label is rejected too. Conservative false positives are accepted
	// for a safety gate; false negatives are not.
	forbiddenKeyword = regexp.MustCompile(`(?i)\b(insert|update|delete|alter|drop|create|truncate|grant|revoke|vacuum|analyze|reindex)\b`)

	placeholderPattern = regexp.MustCompile(`\$(\d+)`)
)

// ValidateSQL statically checks a candidate statement and returns the cleaned
// text that will be wrapped and executed. It enforces: a single statement, a
// SELECT or WITH head, and no write/DDL verbs anywhere in the text. No query
// is sent to the data store when validation fails.
func ValidateSQL(sqlText string) (string, error) {
	cleaned := strings.TrimSpace(sqlText)

	// Allow at most one trailing statement separator.
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, ";"))

	if strings.Contains(cleaned, ";") {
		return "", utils.NewAppError(utils.ErrCodeValidation,
			"multiple statements", "only a single statement is allowed")
	}

	if !startsWithSelect.MatchString(cleaned) {
		return "", utils.NewAppError(utils.ErrCodeValidation,
			"not a SELECT", "statement must begin with SELECT or WITH")
	}

	if match := forbiddenKeyword.FindString(cleaned); match != "" {
		return "", utils.NewAppError(utils.ErrCodeValidation,
			"forbidden keyword", strings.ToUpper(match))
	}

	return cleaned, nil
}

// maxPlaceholder returns the highest positional-parameter index referenced
// literally in the statement text, or 0 when none appear.
func maxPlaceholder(sqlText string) int {
	highest := 0
	for _, m := range placeholderPattern.FindAllStringSubmatch(sqlText, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}

// wrapSQL encloses the validated statement as a subquery with LIMIT/OFFSET
// bound to the two placeholders after base. The inner query is never parsed
// or rewritten; its own LIMIT/OFFSET clauses, if any, still apply inside.
func wrapSQL(sqlText string, base int) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM ( ")
	b.WriteString(sqlText)
	b.WriteString(" ) AS t LIMIT $")
	b.WriteString(strconv.Itoa(base + 1))
	b.WriteString(" OFFSET $")
	b.WriteString(strconv.Itoa(base + 2))
	return b.String()
}
