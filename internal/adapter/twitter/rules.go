// internal/adapter/twitter/rules.go

package twitter

import (
	"context"
	"fmt"
	"strings"

	twitter "github.com/g8rswimmer/go-twitter/v2"

	"tweetpulse/internal/domain/post"
	"tweetpulse/internal/logging"
)

// Rule tags owned by this service; rules with other tags are left alone
const (
	tagPrefix   = "tweetpulse:"
	keywordsTag = tagPrefix + "keywords"
	accountsTag = tagPrefix + "accounts"
)

// BuildRules turns a subscription into stream rules: one for the tracked
// keywords and one for posts from or to the followed accounts
func BuildRules(sub post.Subscription) []twitter.TweetSearchStreamRule {
	var rules []twitter.TweetSearchStreamRule

	lang := ""
	if sub.Language != "" {
		lang = " lang:" + sub.Language
	}

	if len(sub.Track) > 0 {
		terms := make([]string, 0, len(sub.Track))
		for _, k := range sub.Track {
			terms = append(terms, quoteTerm(k))
		}
		rules = append(rules, twitter.TweetSearchStreamRule{
			Value: group(terms) + lang,
			Tag:   keywordsTag,
		})
	}

	if len(sub.Follow) > 0 {
		terms := make([]string, 0, 2*len(sub.Follow))
		for _, a := range sub.Follow {
			terms = append(terms, "from:"+a.UserName, "to:"+a.UserName)
		}
		rules = append(rules, twitter.TweetSearchStreamRule{
			Value: group(terms) + lang,
			Tag:   accountsTag,
		})
	}

	return rules
}

func group(terms []string) string {
	if len(terms) == 1 {
		return terms[0]
	}
	return "(" + strings.Join(terms, " OR ") + ")"
}

func quoteTerm(term string) string {
	if strings.ContainsAny(term, " \t") {
		return `"` + strings.ReplaceAll(term, `"`, `\"`) + `"`
	}
	return term
}

// planRules compares installed rules with the wanted ones and returns the ids to
// delete and the rules to add. Rules not tagged by this service are kept.
func planRules(installed []*twitter.TweetSearchStreamRuleEntity, wanted []twitter.TweetSearchStreamRule) ([]twitter.TweetSearchStreamRuleID, []twitter.TweetSearchStreamRule) {
	want := make(map[string]bool, len(wanted))
	for _, r := range wanted {
		want[r.Tag+"\x00"+r.Value] = true
	}

	have := make(map[string]bool, len(installed))
	var remove []twitter.TweetSearchStreamRuleID
	for _, r := range installed {
		if r == nil || !strings.HasPrefix(r.Tag, tagPrefix) {
			continue
		}
		key := r.Tag + "\x00" + r.Value
		if want[key] && !have[key] {
			have[key] = true
			continue
		}
		remove = append(remove, r.ID)
	}

	var add []twitter.TweetSearchStreamRule
	for _, r := range wanted {
		if !have[r.Tag+"\x00"+r.Value] {
			add = append(add, r)
		}
	}

	return remove, add
}

// syncRules makes the installed stream rules match the subscription
func (p *Platform) syncRules(ctx context.Context, sub post.Subscription) error {
	current, err := p.app.TweetSearchStreamRules(ctx, []twitter.TweetSearchStreamRuleID{})
	if err != nil {
		return fmt.Errorf("error listing stream rules: %w", err)
	}

	var installed []*twitter.TweetSearchStreamRuleEntity
	if current != nil {
		installed = current.Rules
	}

	remove, add := planRules(installed, BuildRules(sub))

	if len(remove) > 0 {
		if _, err := p.app.TweetSearchStreamDeleteRuleByID(ctx, remove, false); err != nil {
			return fmt.Errorf("error deleting stream rules: %w", err)
		}
	}
	if len(add) > 0 {
		if _, err := p.app.TweetSearchStreamAddRule(ctx, add, false); err != nil {
			return fmt.Errorf("error adding stream rules: %w", err)
		}
	}

	p.logger.WithFields(logging.Fields{
		"removed": len(remove),
		"added":   len(add),
	}).Debug("Stream rules synced")
	return nil
}
