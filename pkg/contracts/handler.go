package contracts

import "github.com/julienschmidt/httprouter"

// Handler is implemented by each domain (bookings, resources) to mount its
// routes on the shared application router.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
