// Package bayes is an exact inference engine for small discrete Bayesian
// networks.
//
// A Network is assembled with a Builder and checked once by Validate, after
// which it is immutable. An Engine answers marginal queries over it by
// variable elimination; SensitivityAnalyzer and ScenarioEstimator build on
// repeated queries. None of these types hold mutable state, so a single
// Network and Engine can be shared by concurrent callers.
//
// Variables are interned to dense VarIDs at build time. Callers holding
// names convert them at the boundary with Network.ID and Network.Evidence.
package bayes
