package repo

import (
	"github.com/GlebRadaev/storecredit/internal/pg"
	accountrepo "github.com/GlebRadaev/storecredit/internal/repo/account-repo"
	reservationrepo "github.com/GlebRadaev/storecredit/internal/repo/reservation-repo"
	userrepo "github.com/GlebRadaev/storecredit/internal/repo/user-repo"
)

type Repositories struct {
	UserRepo        *userrepo.Repository
	AccountRepo     *accountrepo.Repository
	ReservationRepo *reservationrepo.Repository
}

func New(conn pg.Database, txManager pg.TXManager) *Repositories {
	return &Repositories{
		UserRepo:        userrepo.New(conn),
		AccountRepo:     accountrepo.New(conn, txManager),
		ReservationRepo: reservationrepo.New(conn),
	}
}
