<code>
=== ENDFILE ===

Include a requirements.txt when you use third-party packages and a main.py
entrypoint. A web service must listen on the port in the PORT environment
variable.`

// CodeReview builds the review prompt for generated and built code.
func (b *Builder) CodeReview(it *store.Item) Prompt {
	sop := b.skills.LoadOr(skills.ReviewCode, defaultCodeReviewSOP)

	var sb strings.Builder
	sb.WriteString("Review the following work:\n\n")
	fmt.Fprintf(&sb, "REQUIREMENT: %s\n\n", it.Text)
	fmt.Fprintf(&sb, "GENERATED CODE:\n%s\n\n", ReviewInput(LatestAttempt(it.Output), MaxCodeReviewChars))
	sb.WriteString(verdictFormat)

	return Prompt{System: sop, User: sb.String()}
}

// Document builds the consulting document prompt for a specialist.
func (b *Builder) Document(it *store.Item, agent skills.Agent, sops []string) Prompt {
	var sys strings.Builder
	fmt.Fprintf(&sys, "YOU ARE THE AGENT: %s\n\nYOUR CORE KNOWLEDGE (SOPs):\n", agent.Name)
	for i, content := range sops {
		fmt.Fprintf(&sys, "\n=== SKILL %d ===\n%s\n=== END SKILL %d ===\n", i+1, content, i+1)
	}
	sys.WriteString(`
EXECUTION INSTRUCTIONS:
1. Analyze the idea or request provided.
2. Using your skills and SOPs, produce a STRUCTURED and COMPLETE output.
3. The output must be a professional document ready to present.
4. Use Markdown with clear sections, tables where they apply and quantitative data.
5. Be specific: include numbers, deadlines and owners where possible.
6. End with a "Next Steps" section.`)

	request := it.Text
	if it.Error != "" {
		request += "\n\nREVIEWER FEEDBACK (fix these points):\n" + it.Error
	}

	var user strings.Builder
	fmt.Fprintf(&user, "ORGANIZATIONAL CONTEXT:\n%s\n\n", b.ContextString())
	if hist := b.history(it.ID); hist != "" {
		user.WriteString(hist + "\n")
	}
	fmt.Fprintf(&user, "IDEA/REQUEST TO EXECUTE:\n\"%s\"\n\n", request)
	user.WriteString("Produce a professional, complete output based on your skills and SOPs.")

	return Prompt{System: sys.String(), User: user.String()}
}

// DocReview builds the quality review prompt for a generated document.
func (b *Builder) DocReview(it *store.Item) Prompt {
	sop := b.skills.LoadOr(skills.ReviewDocument, defaultDocReviewSOP)

	var sb strings.Builder
	sb.WriteString("Review the following document produced by a consulting agent:\n\n")
	fmt.Fprintf(&sb, "ORIGINAL REQUEST: %s\n\n", it.Text)
	fmt.Fprintf(&sb, "GENERATED DOCUMENT:\n%s\n\n", ReviewInput(LatestDocument(it.Output), MaxDocReviewChars))
	sb.WriteString(verdictFormat)

	return Prompt{System: sop, User: sb.String()}
}

const verdictFormat = `## Response Format
Respond in this exact format:

VERDICT: APPROVED or REJECTED
SCORE: [1-10]
SUMMARY: one paragraph

COMMENTS:
- description of each issue that must be fixed`

// ContextString renders the most recent knowledge entries, one per line.
func (b *Builder) ContextString() string {
	items, err := b.store.RecentContextItems(MaxContextItems)
	if err != nil || len(items) == 0 {
		return "No stored context."
	}
	lines := make([]string, 0, len(items))
	for _, ci := range items {
		lines = append(lines, fmt.Sprintf("- %s: %s", ci.Key, ci.Content))
	}
	return strings.Join(lines, "\n")
}

// history lists earlier routing and rejection events for an item.
func (b *Builder) history(itemID int64) string {
	events, err := b.store.GetEvents(itemID)
	if err != nil {
		return ""
	}

	var relevant []store.Event
	for _, e := range events {
		switch e.Type {
		case "routed", "rejected", "reset", "recovered":
			relevant = append(relevant, e)
		}
	}
	if len(relevant) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("HISTORY:\n")
	for _, e := range relevant {
		agent := "system"
		if e.Agent != "" {
			agent = e.Agent
		}
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", agent, e.Type, e.Content)
	}
	return sb.String()
}

// ReviewInput truncates text to max characters for a review prompt.
func ReviewInput(text string, max int) string {
	return truncate(text, max, truncatedSuffix)
}

func truncate(text string, max int, suffix string) string {
	if len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max] + suffix
}
