// Package schema turns untrusted model output into recipe data.
//
// Repair cleans the usual formatting quirks (code fences, conversational
// wrapping, clock-style timestamps) before decoding. SafeParseTasks is strict
// and returns a *ParseError because an empty plan is never a safe default.
// SafeParseSubSteps and SafeParseSearchQueries degrade to an empty result
// instead of failing.
package schema
