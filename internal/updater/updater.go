// Package updater implements the differential fetch (§4.6/§4.7) and
// per-server role/nickname reconciliation (§4.8) halves of the
// updater core. Grounded on
// original_source/shockwave/shockwave_core/src/updater/{fetch,update}.rs.
package updater

import (
	"github.com/bwmarrin/discordgo"

	"github.com/shockwave-oss/shockwave/internal/database"
	"github.com/shockwave-oss/shockwave/internal/frontend"
	"github.com/shockwave-oss/shockwave/internal/riotapi"
)

// Updater bundles the collaborators fetch/reconcile need: the typed DB
// layer, the Riot API client, a Discord REST session (unsharded is
// fine — only REST methods are used), and the frontend notifier.
type Updater struct {
	DB       *database.DB
	Riot     *riotapi.Client
	Discord  *discordgo.Session
	Frontend *frontend.Notifier
}

// New builds an Updater from its collaborators.
func New(db *database.DB, riot *riotapi.Client, discord *discordgo.Session, fe *frontend.Notifier) *Updater {
	return &Updater{DB: db, Riot: riot, Discord: discord, Frontend: fe}
}
