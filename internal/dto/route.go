package dto

// AllocationEntry assigns one student within a sync request.
type AllocationEntry struct {
	StudentID    string `json:"student_id" validate:"required"`
	BoardingStop string `json:"boarding_stop" validate:"required"`
}

// SyncAllocationsRequest replaces a route's active allocations atomically.
type SyncAllocationsRequest struct {
	Allocations []AllocationEntry `json:"allocations" validate:"required,dive"`
}

// SyncAllocationsResponse reports the applied allocation count.
type SyncAllocationsResponse struct {
	RouteID   string `json:"route_id"`
	Allocated int    `json:"allocated"`
}
