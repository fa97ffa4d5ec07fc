package app

import "doctrans/pkg/domain"

// aggregateStatus is the rule applied right after a job's targets finish
// processing: all done is done, all failed is failed, anything else is mixed.
func aggregateStatus(targets []domain.JobTarget) domain.JobStatus {
	allDone := len(targets) > 0
	allFailed := len(targets) > 0
	for _, t := range targets {
		if t.Status != domain.TargetDone {
			allDone = false
		}
		if t.Status != domain.TargetFailed {
			allFailed = false
		}
	}
	switch {
	case allDone:
		return domain.JobDone
	case allFailed:
		return domain.JobFailed
	default:
		return domain.JobMixed
	}
}

// derivedStatus is the rule the targets listing reports. It differs from
// aggregateStatus while targets are still in flight: in-flight plus failed
// reads as mixed, in-flight alone as processing. With nothing in flight and
// nothing failed it falls back to the persisted job status.
func derivedStatus(targets []domain.JobTarget, persisted domain.JobStatus) domain.JobStatus {
	anyProcessing := false
	anyFailed := false
	allDone := len(targets) > 0
	for _, t := range targets {
		switch t.Status {
		case domain.TargetQueued, domain.TargetProcessing:
			anyProcessing = true
		case domain.TargetFailed:
			anyFailed = true
		}
		if t.Status != domain.TargetDone {
			allDone = false
		}
	}
	switch {
	case allDone:
		return domain.JobDone
	case anyProcessing && anyFailed:
		return domain.JobMixed
	case anyProcessing:
		return domain.JobProcessing
	case anyFailed:
		return domain.JobFailed
	default:
		return persisted
	}
}
