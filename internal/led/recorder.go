package led

import "sync"

// Recorder is an in-memory Driver that keeps every page it receives.
type Recorder struct {
	mu      sync.Mutex
	Pages   []Page
	Enabled bool
	Setups  int
	Err     error // returned from SendPage when set
	// EnableErrs are returned, one per call, from SetEnabled before it
	// starts succeeding.
	EnableErrs []error
	Max     int   // keep only the last Max pages; 0 keeps all
}

func (r *Recorder) Setup() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Setups++
	r.Enabled = true
	return nil
}

func (r *Recorder) SendPage(buf []byte, page uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	p, err := ParsePage(buf, page)
	if err != nil {
		return err
	}
	r.Pages = append(r.Pages, p)
	if r.Max > 0 && len(r.Pages) > r.Max {
		r.Pages = append(r.Pages[:0], r.Pages[len(r.Pages)-r.Max:]...)
	}
	return nil
}

func (r *Recorder) SetEnabled(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.EnableErrs) > 0 {
		err := r.EnableErrs[0]
		r.EnableErrs = r.EnableErrs[1:]
		return err
	}
	r.Enabled = on
	return nil
}

func (r *Recorder) Close() error { return r.SetEnabled(false) }

// Last returns the most recent page, if any.
func (r *Recorder) Last() (Page, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Pages) == 0 {
		return Page{}, false
	}
	return r.Pages[len(r.Pages)-1], true
}
