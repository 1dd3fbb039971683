package updater

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/shockwave-oss/shockwave/internal/database"
	"github.com/shockwave-oss/shockwave/internal/evaluator"
	"github.com/shockwave-oss/shockwave/internal/logging"
	"github.com/shockwave-oss/shockwave/internal/models"
)

const unknownRoleErrorCode = 10011
const maxNicknameCodepoints = 32
const auditLogReason = "shockwave role reconciliation"

// UpdateUser implements §4.8's update_user(user_id): loads the
// evaluation context, skips ignored users, and reconciles every server
// the user is on in parallel.
func (u *Updater) UpdateUser(ctx context.Context, userID int64) error {
	evalCtx, err := u.DB.GetEvaluationContext(ctx, userID)
	if err != nil {
		return err
	}
	if evalCtx.User.Ignore {
		return nil
	}

	servers, err := u.DB.GetServersForUser(ctx, evalCtx.User.Snowflake)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, server := range servers {
		server := server
		g.Go(func() error {
			membership, err := u.DB.GetGuildMember(gctx, server.Snowflake, evalCtx.User.Snowflake)
			if err != nil {
				// A membership row not existing yet (race with ingest) isn't
				// fatal for other servers' reconciliation.
				logging.Warn(logging.Updater).Logf("update_user: no membership for user %d on server %d: %v", userID, server.ID, err)
				return nil
			}
			return u.UpdateUserOnServer(gctx, evalCtx, server, membership)
		})
	}
	return g.Wait()
}

// UpdateUserOnServer implements §4.8's update_user_on_server: role
// evaluation + add/remove reconciliation + nickname templating.
func (u *Updater) UpdateUserOnServer(ctx context.Context, evalCtx *models.EvaluationContext, server models.Server, membership *models.GuildMember) error {
	rolesAndConditions, err := u.DB.GetRolesAndConditionsForServer(ctx, server.ID)
	if err != nil {
		return err
	}

	currentRoles := make(map[string]bool, len(membership.Roles))
	for _, r := range membership.Roles {
		currentRoles[r] = true
	}

	var shouldHave, shouldNotHave []database.RoleWithConditions
	for _, rc := range rolesAndConditions {
		if !isUsableSnowflake(rc.Role.Snowflake) {
			continue // disabled or non-numeric snowflake: skip entirely (§3/§4.8)
		}
		applies, _ := evaluator.Evaluate(rc.Role, rc.Conditions, evalCtx)
		if applies {
			shouldHave = append(shouldHave, rc)
		} else {
			shouldNotHave = append(shouldNotHave, rc)
		}
	}

	shouldHaveSet := make(map[string]bool, len(shouldHave))
	for _, rc := range shouldHave {
		shouldHaveSet[rc.Role.Snowflake] = true
	}

	// Effective removal set = should_not_have \ should_have.
	for _, rc := range shouldNotHave {
		if shouldHaveSet[rc.Role.Snowflake] {
			continue
		}
		if !currentRoles[rc.Role.Snowflake] {
			continue
		}
		if err := u.Discord.GuildMemberRoleRemove(server.Snowflake, membership.UserID, rc.Role.Snowflake, discordgo.WithAuditLogReason(auditLogReason)); err != nil {
			logging.Warn(logging.Updater).Logf("remove role %s from user %s on guild %s failed: %v", rc.Role.Snowflake, membership.UserID, server.Snowflake, err)
		}
	}

	for _, rc := range shouldHave {
		if currentRoles[rc.Role.Snowflake] {
			continue
		}
		if err := u.addRole(ctx, evalCtx.User.ID, server, membership, rc); err != nil {
			logging.Warn(logging.Updater).Logf("add role %s to user %s on guild %s failed: %v", rc.Role.Snowflake, membership.UserID, server.Snowflake, err)
		}
	}

	return u.reconcileNickname(ctx, evalCtx, server, membership)
}

func (u *Updater) addRole(ctx context.Context, userID int64, server models.Server, membership *models.GuildMember, rc database.RoleWithConditions) error {
	err := u.Discord.GuildMemberRoleAdd(server.Snowflake, membership.UserID, rc.Role.Snowflake, discordgo.WithAuditLogReason(auditLogReason))
	if err != nil {
		if discordErrorCode(err) == unknownRoleErrorCode {
			logging.Warn(logging.Updater).Logf("role %s (id %d) reports Unknown Role, clearing snowflake", rc.Role.Snowflake, rc.Role.ID)
			if clearErr := u.DB.ClearSnowflakeForRole(ctx, rc.Role.ID); clearErr != nil {
				return clearErr
			}
			return nil
		}
		return err
	}

	if err := u.DB.InsertDiscordMemberRole(ctx, server.Snowflake, membership.UserID, rc.Role.Snowflake); err != nil {
		return err
	}

	if rc.Role.Announce && u.Frontend != nil {
		if notifyErr := u.Frontend.Promote(ctx, userID, rc.Role.ID); notifyErr != nil {
			logging.Warn(logging.Updater).Logf("promote notification failed for role %d: %v", rc.Role.ID, notifyErr)
		}
	}
	return nil
}

// reconcileNickname implements §4.8 step 5: template substitution,
// 32-codepoint truncation, clear-if-no-primary.
func (u *Updater) reconcileNickname(ctx context.Context, evalCtx *models.EvaluationContext, server models.Server, membership *models.GuildMember) error {
	if server.NicknamePattern == "" {
		return nil
	}

	var primary *models.LeagueAccount
	for i := range evalCtx.Accounts {
		if evalCtx.Accounts[i].Primary {
			primary = &evalCtx.Accounts[i]
			break
		}
	}

	if primary == nil {
		if membership.Nickname != nil {
			return u.setNickname(ctx, server, membership, nil)
		}
		return nil
	}

	target := renderNicknamePattern(server.NicknamePattern, primary.Region, primary.Username)
	if membership.Nickname != nil && *membership.Nickname == target {
		return nil
	}
	return u.setNickname(ctx, server, membership, &target)
}

func (u *Updater) setNickname(ctx context.Context, server models.Server, membership *models.GuildMember, nick *string) error {
	value := ""
	if nick != nil {
		value = *nick
	}
	if err := u.Discord.GuildMemberNickname(server.Snowflake, membership.UserID, value, discordgo.WithAuditLogReason(auditLogReason)); err != nil {
		return err
	}
	return u.DB.UpdateGuildMemberNickname(ctx, server.Snowflake, membership.UserID, nick)
}

// renderNicknamePattern substitutes {region}/{username} and truncates
// to 32 code points (not bytes, §9 DESIGN NOTES).
func renderNicknamePattern(pattern, region, username string) string {
	rendered := strings.NewReplacer("{region}", region, "{username}", username).Replace(pattern)
	runes := []rune(rendered)
	if len(runes) > maxNicknameCodepoints {
		runes = runes[:maxNicknameCodepoints]
	}
	return string(runes)
}

func isUsableSnowflake(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// discordErrorCode extracts a discordgo *RESTError's JSON error code,
// used to detect Unknown Role (10011, §4.8/§7).
func discordErrorCode(err error) int {
	restErr, ok := err.(*discordgo.RESTError)
	if !ok || restErr.Message == nil {
		return 0
	}
	return restErr.Message.Code
}
