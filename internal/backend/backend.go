// Package backend abstracts the job-scheduling environment the manager
// runs alongside: a local workstation process or a Slurm cluster.
package backend

import "context"

// Backend lets the Listener requeue the producing job and submit
// long-running compression work without the core needing to know how
// jobs are scheduled on this system.
type Backend interface {
	// RequeueJob instructs the external scheduler to enqueue a
	// successor run of the producing job that starts after the
	// current one ends. Implementations must tolerate being called
	// more than once; the Listener additionally guards with its own
	// flag so this is only a defense in depth.
	RequeueJob(ctx context.Context) error

	// Compress submits a job that tars and gzips files into
	// archiveName. It must be a no-op if archiveName already exists or
	// a submission for it is already queued or running.
	Compress(ctx context.Context, archiveName string, files []string) error
}
