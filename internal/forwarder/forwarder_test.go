package forwarder

import "testing"

func TestExtractEventType(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"simple", `{"t":"MESSAGE_CREATE","d":{}}`, "MESSAGE_CREATE", true},
		{"missing", `{"d":{}}`, "", false},
		{"unterminated", `{"t":"MESSAGE_CREATE`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractEventType([]byte(tt.raw))
			if ok != tt.ok || got != tt.want {
				t.Fatalf("extractEventType() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestScanMagicToken(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantID    string
		wantFound bool
	}{
		{
			name:      "present once",
			raw:       `content: magic_incantation_for_refreshing_guild_members_12345 trailing text`,
			wantID:    "12345",
			wantFound: true,
		},
		{
			name:      "present multiple times still one match from first occurrence",
			raw:       `magic_incantation_for_refreshing_guild_members_111 ... magic_incantation_for_refreshing_guild_members_222`,
			wantID:    "111",
			wantFound: true,
		},
		{
			name:      "absent",
			raw:       `nothing interesting here`,
			wantFound: false,
		},
		{
			name:      "token with no trailing digits",
			raw:       `magic_incantation_for_refreshing_guild_members_ nope`,
			wantFound: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, found := scanMagicToken([]byte(tt.raw))
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if found && id != tt.wantID {
				t.Fatalf("id = %q, want %q", id, tt.wantID)
			}
		})
	}
}

func TestAllowListGatesForwarding(t *testing.T) {
	allowed := []string{"GUILD_MEMBER_ADD", "MESSAGE_CREATE", "MESSAGE_UPDATE", "MESSAGE_DELETE", "MESSAGE_REACTION_ADD", "INTERACTION_CREATE"}
	for _, ev := range allowed {
		if !allowList[ev] {
			t.Fatalf("expected %s to be allow-listed", ev)
		}
	}
	disallowed := []string{"PRESENCE_UPDATE", "TYPING_START", "GUILD_CREATE"}
	for _, ev := range disallowed {
		if allowList[ev] {
			t.Fatalf("expected %s to not be allow-listed", ev)
		}
	}
}

func TestTryForwardMagicTokenEnqueuesExactlyOnce(t *testing.T) {
	backfill := make(chan BackfillRequest, 4)
	f := New("amqp://unused", backfill)

	raw := []byte(`{"t":"MESSAGE_CREATE","d":{"content":"magic_incantation_for_refreshing_guild_members_777 magic_incantation_for_refreshing_guild_members_777"}}`)
	f.TryForward(3, raw)

	select {
	case req := <-backfill:
		if req.GuildID != "777" || req.ShardID != 3 {
			t.Fatalf("unexpected backfill request: %+v", req)
		}
	default:
		t.Fatalf("expected exactly one backfill request")
	}
	select {
	case req := <-backfill:
		t.Fatalf("expected no second backfill request, got %+v", req)
	default:
	}
}

func TestTryForwardDisallowedEventNoPublish(t *testing.T) {
	backfill := make(chan BackfillRequest, 1)
	f := New("amqp://unused", backfill)

	raw := []byte(`{"t":"PRESENCE_UPDATE","d":{}}`)
	f.TryForward(0, raw)

	f.mu.Lock()
	n := f.queue.Len()
	f.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected zero queued publishes for disallowed event, got %d", n)
	}
}
