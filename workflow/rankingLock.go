package workflow

import (
	"fmt"

	"github.com/mmcampusware/scholarship_backend/utils"
	"gorm.io/gorm"
)

// AcquireRankingLock serializes finalize/reorder/distribute per ranking across
// instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will run the transaction.
func AcquireRankingLock(tx *gorm.DB, rankingId int) error {
	lockName := fmt.Sprintf("ranking:%d", rankingId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 10)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return utils.ErrLockContention
	}
	return nil
}

func ReleaseRankingLock(tx *gorm.DB, rankingId int) {
	lockName := fmt.Sprintf("ranking:%d", rankingId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
