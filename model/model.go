package model

import (
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var snowflakeNode *snowflake.Node

// Models owned by the authorization server.
var Models = []interface{}{
	&Authorization{}, &AccessToken{}, &RefreshToken{}, &RateLimitEntry{},
}

// AppModels are owned by the surrounding application. They are migrated only in
// development setups and tests; production reads them as-is.
var AppModels = []interface{}{
	&User{}, &Organization{}, &Membership{}, &Note{}, &NoteShare{},
}

func init() {
	var err error
	snowflakeNode, err = snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
}

func GenerateID() uint {
	return uint(snowflakeNode.Generate())
}

func AutoMigrate(db *gorm.DB, withAppModels bool) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return err
	}
	if withAppModels {
		return db.AutoMigrate(AppModels...)
	}
	return nil
}
