package portal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage is a scripted page for classifier tests.
type fakePage struct {
	url         string
	hasPassword bool
	bodyStyle   interface{}
	elementErr  error
	evalErr     error
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) HasElement(selector string) (bool, error) {
	if p.elementErr != nil {
		return false, p.elementErr
	}
	return p.hasPassword, nil
}

func (p *fakePage) Evaluate(script string) (interface{}, error) {
	if p.evalErr != nil {
		return nil, p.evalErr
	}
	return p.bodyStyle, nil
}

func newTestClassifier() *Classifier {
	return NewClassifier("b2clogin.com", "waiting_room_background_en-US.png")
}

func TestClassify_IdentityProviderURLWins(t *testing.T) {
	c := newTestClassifier()

	// Even with waiting-room markers present the URL check is decisive.
	page := &fakePage{
		url:       "https://tenant.b2clogin.com/tenant/oauth2/authorize",
		bodyStyle: "background: url('waiting_room_background_en-US.png')",
	}

	state, err := c.Classify(page)
	require.NoError(t, err)
	assert.Equal(t, LoginChallenge, state)
}

func TestClassify_PasswordInputMeansLogin(t *testing.T) {
	c := newTestClassifier()

	page := &fakePage{
		url:         "https://www.usvisascheduling.com/some/interstitial",
		hasPassword: true,
	}

	state, err := c.Classify(page)
	require.NoError(t, err)
	assert.Equal(t, LoginChallenge, state)
}

func TestClassify_WaitingRoomBackground(t *testing.T) {
	c := newTestClassifier()

	page := &fakePage{
		url:       "https://www.usvisascheduling.com/",
		bodyStyle: `background-image: url("/assets/waiting_room_background_en-US.png"); height: 100%`,
	}

	state, err := c.Classify(page)
	require.NoError(t, err)
	assert.Equal(t, WaitingRoom, state)
}

func TestClassify_DefaultsToSchedulingPage(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name string
		page *fakePage
	}{
		{"plain page", &fakePage{url: "https://www.usvisascheduling.com/schedule/"}},
		{"nil body style", &fakePage{url: "https://www.usvisascheduling.com/schedule/", bodyStyle: nil}},
		{"unrelated style", &fakePage{url: "https://www.usvisascheduling.com/schedule/", bodyStyle: "color: red"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := c.Classify(tt.page)
			require.NoError(t, err)
			assert.Equal(t, SchedulingPage, state)
		})
	}
}

func TestClassify_InspectionFailuresAreUnknown(t *testing.T) {
	c := newTestClassifier()

	t.Run("element probe fails", func(t *testing.T) {
		page := &fakePage{url: "https://www.usvisascheduling.com/", elementErr: errors.New("mid-navigation")}
		state, err := c.Classify(page)
		assert.Error(t, err)
		assert.Equal(t, Unknown, state)
	})

	t.Run("style probe fails", func(t *testing.T) {
		page := &fakePage{url: "https://www.usvisascheduling.com/", evalErr: errors.New("frame detached")}
		state, err := c.Classify(page)
		assert.Error(t, err)
		assert.Equal(t, Unknown, state)
	})
}

func TestPageState_String(t *testing.T) {
	assert.Equal(t, "waiting-room", WaitingRoom.String())
	assert.Equal(t, "login-challenge", LoginChallenge.String())
	assert.Equal(t, "scheduling-page", SchedulingPage.String())
	assert.Equal(t, "unknown", Unknown.String())
}
