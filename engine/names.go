package engine

// Export names the guest module must provide. The table is fixed; a guest
// missing any of them is rejected at instantiation.
const (
	exportExecutorNew            = "quic_executor_new"
	exportExecutorSubmit         = "quic_executor_submit"
	exportExecutorSubmitCallback = "quic_executor_submit_callback"
	exportExecutorFree           = "quic_executor_free"
	exportAllocateMemory         = "quic_allocate_memory"
	exportFreeMemory             = "quic_free_memory"
)

// HostModule is the name of the host module the guest imports its
// completion functions from.
const HostModule = "quicbridge"

// Host function names within HostModule.
const (
	hostPostFrame      = "post_frame"
	hostInvokeCallback = "invoke_callback"
)

// requiredExports lists every guest export the adapter calls.
func requiredExports() []string {
	return []string{
		exportExecutorNew,
		exportExecutorSubmit,
		exportExecutorSubmitCallback,
		exportExecutorFree,
		exportAllocateMemory,
		exportFreeMemory,
	}
}
