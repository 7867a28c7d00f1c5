// Package runner schedules open-loop request issuance along staged rate
// curves.
//
// A [Stream] is an ordered list of [Stage] ramps plus a concurrency cap.
// Tick times depend only on the curve: the scheduler never waits for a
// request to finish before issuing the next one. Each tick tries to take a
// slot; when all MaxInFlight slots are busy the tick is dropped and counted,
// so Issued + Dropped == Attempted always holds.
//
//	res := runner.Stream{
//		Name:        "redirects",
//		Stages:      []runner.Stage{{Duration: time.Minute, StartRate: 10, EndRate: 100}},
//		MaxInFlight: 50,
//		Requester:   req,
//	}.Run(ctx)
//
// [RunAll] starts several streams on one shared timeline.
//
// # Arrival models
//
//   - [ArrivalModelUniform]: the n-th tick lands where the integral of the
//     rate curve reaches n - 0.5
//   - [ArrivalModelPoisson]: exponential gaps in integral space
//
// # Stopping
//
// Ticks stop when the stages are exhausted or the context is cancelled.
// Requests already in flight run on a context detached from the caller's
// and get DrainGrace to finish; whatever is still running after that is
// cancelled and reported as Incomplete.
//
// # Middleware
//
//   - [WithLogging]: log request failures
//   - [WithRetry]: retry with fixed or computed backoff
package runner
