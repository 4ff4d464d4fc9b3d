package web

import (
	"github.com/charmbracelet/log"
	twilio "github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// ICEServer is one entry of the RTC configuration handed to the browser.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// ICEProvider resolves the STUN/TURN servers for the capture transport.
type ICEProvider interface {
	ICEServers() []ICEServer
}

// googleSTUN is the free fallback when no TURN credentials are configured.
var googleSTUN = []ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}

// StaticICE always returns the Google STUN fallback.
type StaticICE struct{}

func (StaticICE) ICEServers() []ICEServer { return googleSTUN }

// TwilioICE fetches short-lived TURN credentials from Twilio, falling back
// to STUN when the token request fails.
type TwilioICE struct {
	client *twilio.RestClient
	logger *log.Logger
}

func NewTwilioICE(accountSID, authToken string, logger *log.Logger) *TwilioICE {
	return &TwilioICE{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		logger: logger,
	}
}

func (t *TwilioICE) ICEServers() []ICEServer {
	token, err := t.client.Api.CreateToken(&api.CreateTokenParams{})
	if err != nil {
		t.logger.Error("failed to get Twilio ICE servers", "error", err)
		return googleSTUN
	}
	if token.IceServers == nil || len(*token.IceServers) == 0 {
		return googleSTUN
	}

	servers := make([]ICEServer, 0, len(*token.IceServers))
	for _, s := range *token.IceServers {
		var server ICEServer
		if s.Urls != nil && *s.Urls != "" {
			server.URLs = append(server.URLs, *s.Urls)
		} else if s.Url != nil && *s.Url != "" {
			server.URLs = append(server.URLs, *s.Url)
		}
		if s.Username != nil {
			server.Username = *s.Username
		}
		if s.Credential != nil {
			server.Credential = *s.Credential
		}
		if len(server.URLs) > 0 {
			servers = append(servers, server)
		}
	}
	if len(servers) == 0 {
		return googleSTUN
	}
	return servers
}
