// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

/*
Package services provides suture.Service wrappers.

HTTPServerService translates http.Server's blocking ListenAndServe into
suture's context-aware Serve with graceful shutdown. JobService runs a
function exactly once and reports its result to a waiting caller.

Each wrapper implements fmt.Stringer so suture can name it in events.
*/
package services
