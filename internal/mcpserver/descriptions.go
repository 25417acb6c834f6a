package mcpserver

// Tool descriptions with interpretation guidance for LLMs.
// Each description explains what the tool does, when to use it,
// how to interpret results, and key thresholds.

func describeScan() string {
	return `Detects rule violations in scripting-language source files without modifying anything.

USE WHEN:
- Surveying a codebase for security and hygiene problems before touching it
- Deciding whether a fix run is worth it (check the fixable count)
- Auditing a single file or directory an agent is about to edit
- Listing exact violation locations to include in a review

INTERPRETING RESULTS:
- Severity levels: critical > high > medium > low
- fixable=true means the fix tool can attempt a mechanical rewrite
- fixable=false findings (eval calls, debt markers) need a human
- unanalyzable files failed to parse; their findings are unknown, not absent
- Supported languages: Bash, Python, Ruby, JavaScript, PHP

METRICS RETURNED:
- items: one entry per finding with path, line, rule, severity, snippet
- files / findings / fixable: totals for the run
- unanalyzable: paths that produced no usable syntax tree`
}

func describeFix() string {
	return `Runs the safe transformation pipeline: detect violations, apply candidate fixes, validate by re-parsing, score confidence, and keep only fixes above the acceptance threshold. Dry run unless apply=true.

USE WHEN:
- Cleaning up trailing whitespace, http:// URLs, or weak hash calls mechanically
- Previewing what a remediation pass would change (leave apply unset)
- Applying vetted fixes after a dry run looked right (set apply=true)
- Raising the threshold for riskier codebases before applying

INTERPRETING RESULTS:
- fixed: accepted rewrites with the confidence each one scored
- unfixed: findings left alone, with the reason:
  - no_fix_available: the rule is detect-only
  - confidence_too_low: the rewrite scored under the threshold
  - validation_failure: the rewrite broke the parse
  - apply_conflict / timeout: the attempt could not complete
  - not_attempted: the per-file budget ran out first
- dry_run=true means nothing was written regardless of other fields
- written lists the files actually rewritten (apply=true only)
- Confidence combines syntax validity, structure preservation, and
  change size; positive weights cap it at 0.9

METRICS RETURNED:
- files / fixes totals, per-rule leaderboard for this MCP session
- write_error when a rewrite could not land (fixes are still reported)`
}

func describeRules() string {
	return `Lists every remediation rule with its category, description, and whether the current configuration enables it.

USE WHEN:
- Choosing which rules to pass to scan or fix
- Checking why an expected rule produced no findings (it may be disabled)
- Explaining to a user what mend can and cannot rewrite

INTERPRETING RESULTS:
- enabled=false means the configuration excluded the rule; pass it in
  the rules parameter to force it for one run
- detect-only rules flag problems but never rewrite
- Categories: security, correctness, style, maintainability, debt

METRICS RETURNED:
- rules: name, category, one-line description, enabled flag`
}

func describeMetrics() string {
	return `Reports fix-attempt aggregates and the learning trend accumulated across every fix call in this MCP session.

USE WHEN:
- Checking whether repeated fix runs are getting more effective
- Finding rules that keep failing before disabling them
- Summarizing a long remediation session for a user

INTERPRETING RESULTS:
- success_rate is accepted/attempted across all rules
- trend.slope > 0 means later attempts succeed more often (the
  scheduler is learning); near zero is normal for short sessions
- problem_rules lists rules at or under 20% success after 5+ attempts
- scheduler.epsilon is the current exploration rate; it decays toward
  0.01 as the session converges
- Counts reset when the MCP server restarts

METRICS RETURNED:
- snapshot: per-rule attempts, successes, durations, avg confidence
- trend: regression of windowed success rates over time
- scheduler: exploration rate and learned (state, rule) entry count`
}
