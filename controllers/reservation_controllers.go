package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/services"
	"github.com/yeremiapane/restaurant-platform/utils"
)

type ReservationController struct {
	Reservations *services.ReservationService
}

func NewReservationController(reservations *services.ReservationService) *ReservationController {
	return &ReservationController{Reservations: reservations}
}

func (rc *ReservationController) CreateReservation(c *gin.Context) {
	var req services.CreateReservationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	req.StaffID = currentUser(c)
	reservation, err := rc.Reservations.CreateReservation(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Reservation created", reservation)
}

// GetAvailableTables answers ?date=YYYY-MM-DD&time=HH:MM&quantity=N. Set
// all=true to also get busy and too small tables with their slot status.
// Times are UTC. A malformed query answers 404 like an empty result.
func (rc *ReservationController) GetAvailableTables(c *gin.Context) {
	checkIn, err := time.ParseInLocation("2006-01-02 15:04", c.Query("date")+" "+c.Query("time"), time.UTC)
	if err != nil {
		utils.RespondError(c, utils.NewNotFoundError("invalid date or time, expected date=YYYY-MM-DD and time=HH:MM"))
		return
	}
	quantity, err := strconv.Atoi(c.Query("quantity"))
	if err != nil || quantity <= 0 {
		utils.RespondError(c, utils.NewNotFoundError("invalid quantity"))
		return
	}

	tables, err := rc.Reservations.GetAvailableTables(c.Request.Context(), checkIn, quantity, c.Query("all") != "true")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Available tables", tables)
}

// GetAllReservations accepts ?date=YYYY-MM-DD, ?status= and ?customer_id=.
func (rc *ReservationController) GetAllReservations(c *gin.Context) {
	var filter services.ReservationFilter
	if raw := c.Query("date"); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			utils.RespondError(c, utils.NewValidationError("invalid date %q", raw))
			return
		}
		filter.Date = &day
	}
	filter.Status = models.ReservationStatus(c.Query("status"))
	customerID, err := queryUint(c, "customer_id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	filter.CustomerID = customerID

	reservations, err := rc.Reservations.ListReservations(c.Request.Context(), filter)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of reservations", reservations)
}

func (rc *ReservationController) GetReservationByID(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	reservation, err := rc.Reservations.GetReservation(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation detail", reservation)
}

func (rc *ReservationController) UpdateReservation(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req services.UpdateReservationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	reservation, err := rc.Reservations.UpdateReservation(c.Request.Context(), id, req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation updated", reservation)
}

func (rc *ReservationController) AssignTable(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req struct {
		TableID uint `json:"table_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	if _, err := rc.Reservations.AssignTable(c.Request.Context(), id, req.TableID, currentUser(c)); err != nil {
		utils.RespondError(c, err)
		return
	}
	rc.respondReservation(c, id, "Table assigned")
}

// UnassignTable removes one table ({"table_id": n}) or, with an empty body,
// every unused table of the reservation.
func (rc *ReservationController) UnassignTable(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req struct {
		TableID *uint `json:"table_id"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, utils.BindError(err))
			return
		}
	}
	if err := rc.Reservations.UnassignTable(c.Request.Context(), id, req.TableID); err != nil {
		utils.RespondError(c, err)
		return
	}
	rc.respondReservation(c, id, "Table unassigned")
}

func (rc *ReservationController) CheckIn(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	reservation, err := rc.Reservations.CheckIn(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation checked in", reservation)
}

func (rc *ReservationController) Cancel(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	reservation, err := rc.Reservations.Cancel(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation canceled", reservation)
}

func (rc *ReservationController) respondReservation(c *gin.Context, id uint, message string) {
	reservation, err := rc.Reservations.GetReservation(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, message, reservation)
}
