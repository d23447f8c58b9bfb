package browsertest

import (
	"sync"

	"github.com/xkilldash9x/shopflow/internal/browser"
)

// Dialog is a fake native dialog that records how it was handled.
type Dialog struct {
	typ     string
	message string

	// AcceptErr is returned by Accept.
	AcceptErr error

	mu        sync.Mutex
	accepted  int
	dismissed int
}

var _ browser.Dialog = (*Dialog)(nil)

// NewDialog creates a dialog without raising it.
func NewDialog(typ, message string) *Dialog {
	return &Dialog{typ: typ, message: message}
}

func (d *Dialog) Type() string    { return d.typ }
func (d *Dialog) Message() string { return d.message }

func (d *Dialog) Accept() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accepted++
	return d.AcceptErr
}

func (d *Dialog) Dismiss() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dismissed++
	return nil
}

// Accepted returns how many times Accept was called.
func (d *Dialog) Accepted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accepted
}

// Dismissed returns how many times Dismiss was called.
func (d *Dialog) Dismissed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dismissed
}

// Response is a fake network response.
type Response struct {
	ResponseURL string
	StatusCode  int
	Type        string
	Payload     []byte
	BodyErr     error
}

var _ browser.Response = (*Response)(nil)

// JSONResponse builds a 200-style JSON response.
func JSONResponse(url string, status int, body string) *Response {
	return &Response{ResponseURL: url, StatusCode: status, Type: "application/json", Payload: []byte(body)}
}

func (r *Response) URL() string         { return r.ResponseURL }
func (r *Response) Status() int         { return r.StatusCode }
func (r *Response) ContentType() string { return r.Type }

func (r *Response) Body() ([]byte, error) {
	if r.BodyErr != nil {
		return nil, r.BodyErr
	}
	return r.Payload, nil
}

// Request is a fake outgoing request.
type Request struct {
	method string
	url    string
}

var _ browser.Request = (*Request)(nil)

func (r *Request) URL() string    { return r.url }
func (r *Request) Method() string { return r.method }
