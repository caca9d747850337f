package authflowrepo

import (
	"net/http"
	"time"
)

// AuthFlowState is what the callback needs to finish a sign-in started by
// this browser.
type AuthFlowState struct {
	State        string    `json:"state"`
	Nonce        string    `json:"nonce"`
	CodeVerifier string    `json:"code_verifier"`
	ReturnURL    string    `json:"return_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repo holds at most one pending authorization flow per browser. Take reads
// and removes it in one step so a state value can be used only once.
type Repo interface {
	Save(w http.ResponseWriter, r *http.Request, flow AuthFlowState) error
	Take(w http.ResponseWriter, r *http.Request) (*AuthFlowState, error)
}
