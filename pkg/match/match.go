// Package match pairs a tracked application with one of the user's
// imported repositories.
package match

import (
	"strings"

	"github.com/softwatch/softwatch/pkg/inventory"
)

// Rule names a matching rule. Rules are tried in the order of Rules.
type Rule string

const (
	RuleExactName        Rule = "exact_name"
	RuleURL              Rule = "url"
	RuleNameContainsRepo Rule = "name_contains_repo"
	RuleRepoContainsName Rule = "repo_contains_name"
)

// Rules is the precedence order. Earlier rules beat later ones across the
// whole repository list, so an exact name match later in the list wins over
// a substring match earlier in it.
var Rules = []Rule{RuleExactName, RuleURL, RuleNameContainsRepo, RuleRepoContainsName}

func (r Rule) matches(name, website string, repo *inventory.Repository) bool {
	switch r {
	case RuleExactName:
		return name != "" && repo.Name == name
	case RuleURL:
		return website != "" && repo.URL == website
	case RuleNameContainsRepo:
		return repo.Name != "" && strings.Contains(name, repo.Name)
	case RuleRepoContainsName:
		return name != "" && strings.Contains(repo.Name, name)
	default:
		return false
	}
}

// Match returns the first repository matched by the highest-precedence rule.
// Empty names and URLs never match.
func Match(name, website string, repos []inventory.Repository) (*inventory.Repository, Rule, bool) {
	for _, rule := range Rules {
		for i := range repos {
			if rule.matches(name, website, &repos[i]) {
				return &repos[i], rule, true
			}
		}
	}
	return nil, "", false
}
