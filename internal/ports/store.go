package ports

// Store is the composite durable interface surface
type Store interface {
	TrackingStore
	SessionStore
	SummaryStore
	FenceStore
	CorrectionStore
	EffectQueue
	SyncStateStore
	Close() error
}
