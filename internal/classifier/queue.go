package classifier

import (
	"image"
	"sort"
	"sync"
)

// maxResults caps how many predictions a single call returns.
const maxResults = 10

// outcome is the terminal state of one inference request.
type outcome struct {
	results []Result
	err     error
}

// request is a single unit of work for the inference worker. The done channel
// is buffered so the worker never blocks on delivery, and the sync.Once makes
// completion exactly-once: even if an engine implementation reports both an
// error and a result through separate callback paths, only the first
// fulfillment is delivered.
type request struct {
	img  image.Image
	done chan outcome
	once sync.Once
}

func newRequest(img image.Image) *request {
	return &request{
		img:  img,
		done: make(chan outcome, 1),
	}
}

// fulfill completes the request. Second and later calls are ignored.
func (r *request) fulfill(results []Result, err error) {
	r.once.Do(func() {
		r.done <- outcome{results: results, err: err}
	})
}

// sortResults sorts predictions by confidence in descending order.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
}

// trimResultsToMax trims the results to a maximum specified count.
func trimResultsToMax(results []Result, maxCount int) []Result {
	if len(results) > maxCount {
		return results[:maxCount]
	}
	return results
}
