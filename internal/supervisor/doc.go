// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

/*
Package supervisor runs the evaluate command's long-lived pieces under suture v4.

The evaluation itself is a one-shot job in the eval layer; the optional metrics
server lives in the api layer and is restarted with backoff if it crashes.
Supervisor events are logged through sutureslog into the zerolog logger:

	logger := logging.NewSlogLogger()
	tree, _ := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	job := services.NewJobService("evaluation", run)
	tree.AddEvalService(job)
	tree.AddAPIService(services.NewHTTPServerService(server, 5*time.Second))

	ctx, cancel := context.WithCancel(ctx)
	errCh := tree.ServeBackground(ctx)
	err := job.Wait(ctx)
	cancel()
	<-errCh
*/
package supervisor
