package orchestrator

// Each state exposes only its legal transitions, so an illegal path does
// not compile.

// PendingState - task queued, nothing opened yet
type PendingState struct{}

func (s *PendingState) Name() string { return "pending" }
func (s *PendingState) ToConnecting() *ConnectingState {
	return &ConnectingState{}
}
func (s *PendingState) ToFailed() *FailedState {
	return &FailedState{}
}

// ConnectingState - opening the source database connection
type ConnectingState struct{}

func (s *ConnectingState) Name() string { return "connecting" }
func (s *ConnectingState) ToFetching() *FetchingState {
	return &FetchingState{}
}
func (s *ConnectingState) ToFailed() *FailedState {
	return &FailedState{}
}

// FetchingState - executing the table query
type FetchingState struct{}

func (s *FetchingState) Name() string { return "fetching" }
func (s *FetchingState) ToUploading() *UploadingState {
	return &UploadingState{}
}
func (s *FetchingState) ToFailed() *FailedState {
	return &FailedState{}
}

// UploadingState - streaming batches to the API
type UploadingState struct{}

func (s *UploadingState) Name() string { return "uploading" }
func (s *UploadingState) ToSucceeded() *SucceededState {
	return &SucceededState{}
}
func (s *UploadingState) ToFailed() *FailedState {
	return &FailedState{}
}

// Terminal States

// SucceededState - every batch delivered
type SucceededState struct{}

func (s *SucceededState) Name() string { return "succeeded" }

// FailedState - task aborted at some stage
type FailedState struct{}

func (s *FailedState) Name() string { return "failed" }
