package ingest

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestToGuildMemberWithNick(t *testing.T) {
	m := &discordgo.Member{
		User:  &discordgo.User{ID: "42"},
		Nick:  "Nickname",
		Roles: []string{"1", "2"},
	}
	gm := toGuildMember("99", m)
	if gm.GuildID != "99" || gm.UserID != "42" {
		t.Fatalf("unexpected identity: %+v", gm)
	}
	if gm.Nickname == nil || *gm.Nickname != "Nickname" {
		t.Fatalf("expected nickname set, got %+v", gm.Nickname)
	}
	if len(gm.Roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(gm.Roles))
	}
}

func TestToGuildMemberWithoutNick(t *testing.T) {
	m := &discordgo.Member{User: &discordgo.User{ID: "7"}}
	gm := toGuildMember("1", m)
	if gm.Nickname != nil {
		t.Fatalf("expected nil nickname, got %q", *gm.Nickname)
	}
}

func TestToCacheGuild(t *testing.T) {
	g := &discordgo.Guild{
		ID:      "1",
		Name:    "guild",
		Roles:   []*discordgo.Role{{ID: "r1", Name: "Role"}},
		Channels: []*discordgo.Channel{{ID: "c1", Name: "chan", Type: discordgo.ChannelTypeGuildText}},
	}
	cg := toCacheGuild(g)
	if len(cg.Roles) != 1 || cg.Roles[0].ID != "r1" {
		t.Fatalf("unexpected roles: %+v", cg.Roles)
	}
	if len(cg.Channels) != 1 || cg.Channels[0].ID != "c1" {
		t.Fatalf("unexpected channels: %+v", cg.Channels)
	}
}
