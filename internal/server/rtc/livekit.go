package rtc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	twirpPrefix      = "/twirp/livekit.RoomService/"
	emptyRoomTimeout = 300
	dataTopic        = "tandem"
)

// VideoGrant is the LiveKit permission claim embedded in access tokens.
type VideoGrant struct {
	RoomCreate     bool   `json:"roomCreate,omitempty"`
	RoomList       bool   `json:"roomList,omitempty"`
	RoomAdmin      bool   `json:"roomAdmin,omitempty"`
	RoomJoin       bool   `json:"roomJoin,omitempty"`
	Room           string `json:"room,omitempty"`
	CanPublish     *bool  `json:"canPublish,omitempty"`
	CanSubscribe   *bool  `json:"canSubscribe,omitempty"`
	CanPublishData *bool  `json:"canPublishData,omitempty"`
}

type accessClaims struct {
	jwt.RegisteredClaims
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
}

// LiveKitProvider talks to a LiveKit-compatible server over its Twirp JSON
// room service API.
type LiveKitProvider struct {
	host      string
	apiKey    string
	apiSecret []byte
	tokenTTL  time.Duration
	client    *http.Client
	now       func() time.Time
}

func NewLiveKitProvider(host, apiKey, apiSecret string, tokenTTL time.Duration) *LiveKitProvider {
	return &LiveKitProvider{
		host:      strings.TrimRight(host, "/"),
		apiKey:    apiKey,
		apiSecret: []byte(apiSecret),
		tokenTTL:  tokenTTL,
		client:    &http.Client{},
		now:       time.Now,
	}
}

func (p *LiveKitProvider) sign(identity string, grant *VideoGrant) (string, error) {
	now := p.now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.apiKey,
			Subject:   identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
		},
		Name:  identity,
		Video: grant,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.apiSecret)
}

func (p *LiveKitProvider) IssueToken(room, identity string, role Role) (string, error) {
	speak := role != RoleListener
	data := true
	subscribe := true

	return p.sign(identity, &VideoGrant{
		RoomJoin:       true,
		Room:           room,
		CanPublish:     &speak,
		CanSubscribe:   &subscribe,
		CanPublishData: &data,
	})
}

type twirpError struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (p *LiveKitProvider) call(ctx context.Context, method, room string, in, out any) error {
	token, err := p.sign("", &VideoGrant{RoomCreate: true, RoomList: true, RoomAdmin: true, Room: room})
	if err != nil {
		return fmt.Errorf("sign admin token: %w", err)
	}

	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+twirpPrefix+method, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		var te twirpError
		if json.Unmarshal(b, &te) == nil && te.Code == "not_found" {
			return fmt.Errorf("%s %q: %w", method, room, ErrRoomNotFound)
		}
		return fmt.Errorf("%s failed: %s; body: %s", method, resp.Status, string(b))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *LiveKitProvider) CreateRoom(ctx context.Context, name string) error {
	in := map[string]any{"name": name, "empty_timeout": emptyRoomTimeout, "max_participants": 2}
	return p.call(ctx, "CreateRoom", name, in, nil)
}

func (p *LiveKitProvider) ListOccupants(ctx context.Context, room string) ([]string, error) {
	var out struct {
		Participants []struct {
			Identity string `json:"identity"`
		} `json:"participants"`
	}

	if err := p.call(ctx, "ListParticipants", room, map[string]string{"room": room}, &out); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(out.Participants))
	for _, pt := range out.Participants {
		ids = append(ids, pt.Identity)
	}
	return ids, nil
}

func (p *LiveKitProvider) DeleteRoom(ctx context.Context, room string) error {
	return p.call(ctx, "DeleteRoom", room, map[string]string{"room": room}, nil)
}

// Broadcast sends payload over the room's reliable data channel. The sender
// is carried in the topic so clients can ignore their own messages.
func (p *LiveKitProvider) Broadcast(ctx context.Context, room, sender string, payload []byte) error {
	in := map[string]any{"room": room, "data": payload, "topic": dataTopic + "." + sender}
	return p.call(ctx, "SendData", room, in, nil)
}
