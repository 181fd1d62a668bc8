package ports

type Metrics interface {
	SubmissionStored(voteType string)
	SummaryDone(outcome string)
	FeedEvent(collection string)
}

type NopMetrics struct{}

func (NopMetrics) SubmissionStored(string) {}
func (NopMetrics) SummaryDone(string)      {}
func (NopMetrics) FeedEvent(string)        {}
