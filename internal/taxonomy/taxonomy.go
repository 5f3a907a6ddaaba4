// Package taxonomy defines the fixed market-intelligence taxonomy used to
// classify messages. Every message is assigned exactly one category; the
// category set is a static configuration artifact, versioned so that
// classification runs recorded against different taxonomy versions are never
// compared directly.
package taxonomy

import (
	"fmt"
	"sort"
	"strings"
)

// Version identifies the current category set. Bump when categories change.
const Version = "v1"

// Category is one taxonomy bucket.
type Category struct {
	Name        string
	Description string
}

// Categories is the focused 10-category taxonomy for opportunity discovery.
var Categories = []Category{
	{"integration_requests", "User needs to connect/integrate with external tools or services (Stripe, Auth0, APIs, webhooks, etc)"},
	{"feature_requests", "User wants new functionality, improvements, or enhancements that don't exist"},
	{"pricing_complaints", "Concerns about cost, affordability, expensive pricing, need for cheaper plans or tiers"},
	{"performance_issues", "Speed problems, slow responses, reliability issues, downtime, latency, scalability concerns"},
	{"usability_problems", "UX issues, confusing interface, learning curve, complexity, poor documentation"},
	{"authentication_needs", "Login, SSO, OAuth, permissions, security, user management, access control"},
	{"bug_reports", "Technical errors, broken features, crashes, unexpected behavior, things not working"},
	{"customization_requests", "Need for more control, configuration options, theming, branding, white-labeling"},
	{"questions", "User asking how to do something, seeking help, learning, informational queries"},
	{"spam_noise", "Low-quality content, off-topic messages, GIFs, memes, promotional spam, gibberish, not actionable"},
}

// Names returns the flat list of category names in declaration order.
func Names() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = c.Name
	}
	return names
}

// Valid reports whether name is a known category.
func Valid(name string) bool {
	for _, c := range Categories {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ValidateAll checks a batch of category assignments, returning the distinct
// unknown names found.
func ValidateAll(names []string) error {
	unknown := map[string]struct{}{}
	for _, n := range names {
		if !Valid(n) {
			unknown[n] = struct{}{}
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	bad := make([]string, 0, len(unknown))
	for n := range unknown {
		bad = append(bad, n)
	}
	sort.Strings(bad)
	return fmt.Errorf("unknown taxonomy categories: %s", strings.Join(bad, ", "))
}

// ClassifierPrompt renders the single-category classification prompt for an
// LLM classifier. The classifier itself is an external collaborator; only the
// prompt artifact lives here.
func ClassifierPrompt() string {
	var b strings.Builder
	b.WriteString("You are a market intelligence classifier analyzing user messages to identify monetizable opportunities.\n\n")
	b.WriteString("CRITICAL RULES:\n")
	b.WriteString("- Each message gets EXACTLY ONE category\n")
	b.WriteString("- Choose the PRIMARY intent/purpose of the message\n")
	b.WriteString("- If a message fits multiple categories, pick the MOST IMPORTANT one\n")
	b.WriteString("- Focus on actionable business intelligence\n\n")
	fmt.Fprintf(&b, "TAXONOMY (%d Categories):\n", len(Categories))
	for _, c := range Categories {
		fmt.Fprintf(&b, "\n%s:\n  %s\n", c.Name, c.Description)
	}
	b.WriteString("\nReturn ONLY valid JSON mapping each message id to its category name.\n")
	return b.String()
}

// Summary renders a human-readable category listing.
func Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market taxonomy %s (%d categories)\n", Version, len(Categories))
	for _, c := range Categories {
		fmt.Fprintf(&b, "  %-24s %s\n", c.Name, c.Description)
	}
	return b.String()
}
