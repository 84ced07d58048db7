package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/AltMur/internal/models"
	logger "github.com/Gopher0727/AltMur/middleware/log"
)

const uniqueMembershipIndex = "idx_room_members_user_room"

type MigrateOptions struct {
	// UniqueMembership rejects a second membership of the same user in the
	// same room.
	UniqueMembership bool
}

// Migrate creates or extends the nine tables, their foreign keys and
// indexes. It never drops columns.
func (p *Provider) Migrate(ctx context.Context, opts MigrateOptions) error {
	return migrate(p.db.WithContext(ctx), p.log, opts)
}

func migrate(db *gorm.DB, log *logger.Logger, opts MigrateOptions) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	m := db.Migrator()
	exists := m.HasIndex(&models.RoomMember{}, uniqueMembershipIndex)
	switch {
	case opts.UniqueMembership && !exists:
		err := db.Exec(fmt.Sprintf(`CREATE UNIQUE INDEX %s ON room_members (user_id, room_id)`, uniqueMembershipIndex)).Error
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", uniqueMembershipIndex, err)
		}
		log.Info("created unique membership index", zap.String("index", uniqueMembershipIndex))
	case !opts.UniqueMembership && exists:
		if err := m.DropIndex(&models.RoomMember{}, uniqueMembershipIndex); err != nil {
			return fmt.Errorf("failed to drop %s: %w", uniqueMembershipIndex, err)
		}
		log.Info("dropped unique membership index", zap.String("index", uniqueMembershipIndex))
	}
	return nil
}
