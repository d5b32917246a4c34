// Package search compiles role-scoped filter, sort, group and page documents into
// parameterized SQL and runs them against a read snapshot.
//
// A request flows through four stages:
//
//	RawSpec --Validate--> QuerySpec --Build--> Plan --Executor--> rows, total --Format--> ResultPage
//
// Every stage is reachable on its own; Engine ties them together per registered entity.
// Values supplied by callers only ever travel as bind arguments. SQL text comes from
// Entity descriptors and ScopePredicate constructors, both of which are written in Go.
package search
