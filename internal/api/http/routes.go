package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/i474232898/weather-tables/internal/common"
	"github.com/i474232898/weather-tables/internal/export"
	"github.com/i474232898/weather-tables/internal/metrics"
	"github.com/i474232898/weather-tables/internal/store"
	"github.com/i474232898/weather-tables/internal/weather"
)

const parquetContentType = "application/vnd.apache.parquet"

var validate = validator.New(validator.WithRequiredStructEnabled())

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, m *metrics.Collector) {
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	v1 := app.Group("/api/v1")

	v1.Get("/stations/data", func(c *fiber.Ctx) error {
		var req stationsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		table, err := service.StationTable(c.UserContext(), req.toStationQuery())
		if err != nil {
			return toFiberError(err)
		}
		return writeStationTable(c, table, req.Output)
	})

	v1.Post("/grid/normalize", func(c *fiber.Ctx) error {
		var g weather.GridResult
		if err := json.Unmarshal(c.Body(), &g); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid grid result: "+err.Error())
		}
		skip, err := parseBoolDefault(c.Query("skipUnmapped"), false)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "skipUnmapped must be a boolean")
		}
		output, err := parseOutput(c.Query("output"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		table, err := service.NormalizeGrid(&g, weather.GridOptions{SkipUnmapped: skip})
		if err != nil {
			return toFiberError(err)
		}
		if output == outputParquet {
			var buf bytes.Buffer
			if err := export.WriteGridParquet(&buf, table); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "failed to encode parquet")
			}
			c.Set(fiber.HeaderContentType, parquetContentType)
			return c.Send(buf.Bytes())
		}
		return c.JSON(table)
	})

	v1.Post("/checkpoints/:filename", func(c *fiber.Ctx) error {
		filename, err := parseFilename(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		var req stationsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		table, err := service.CheckpointStations(c.UserContext(), filename, req.toStationQuery())
		if err != nil {
			return toFiberError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"filename":  filename,
			"rows":      table.Len(),
			"variables": table.Variables,
			"stations":  table.Stations,
		})
	})

	v1.Get("/checkpoints/:filename", func(c *fiber.Ctx) error {
		filename, err := parseFilename(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		output, err := parseOutput(c.Query("output"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		table, err := service.LoadStationTable(c.UserContext(), filename)
		if err != nil {
			return toFiberError(err)
		}
		return writeStationTable(c, table, output)
	})

	v1.Get("/checkpoints/:filename/below", func(c *fiber.Ctx) error {
		filename, err := parseFilename(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		variable := c.Query("variable")
		if variable == "" {
			return fiber.NewError(fiber.StatusBadRequest, "variable query parameter is required")
		}
		threshold, err := strconv.ParseFloat(c.Query("threshold"), 64)
		if err != nil || math.IsNaN(threshold) {
			return fiber.NewError(fiber.StatusBadRequest, "threshold must be a number")
		}

		table, err := service.LoadStationTable(c.UserContext(), filename)
		if err != nil {
			return toFiberError(err)
		}
		values, ok := table.Column(variable)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("variable %q not in checkpoint", variable))
		}

		return c.JSON(fiber.Map{
			"filename":  filename,
			"variable":  variable,
			"threshold": threshold,
			"percent":   weather.Float(weather.PercentBelowThreshold(values, threshold)),
		})
	})
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// toFiberError maps pipeline errors onto HTTP status codes.
func toFiberError(err error) error {
	switch {
	case errors.Is(err, weather.ErrInvalidQuery):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "checkpoint not found")
	case errors.Is(err, weather.ErrNoData):
		return fiber.NewError(fiber.StatusNotFound, "no data for requested period")
	case errors.Is(err, weather.ErrUpstreamData):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, weather.ErrConfiguration):
		return fiber.NewError(fiber.StatusServiceUnavailable, "weather service is not configured")
	case errors.Is(err, weather.ErrParse),
		errors.Is(err, weather.ErrShapeMismatch),
		errors.Is(err, weather.ErrUnmappedCode),
		errors.Is(err, weather.ErrUnmappedAggregation):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to process weather data")
	}
}

func writeStationTable(c *fiber.Ctx, table *weather.ReorganizedTable, output string) error {
	if output == outputParquet {
		var buf bytes.Buffer
		if err := export.WriteStationParquet(&buf, table); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to encode parquet")
		}
		c.Set(fiber.HeaderContentType, parquetContentType)
		return c.Send(buf.Bytes())
	}
	return c.JSON(table)
}

const (
	outputJSON    = "json"
	outputParquet = "parquet"
)

func parseOutput(s string) (string, error) {
	switch s {
	case "", outputJSON:
		return outputJSON, nil
	case outputParquet:
		return outputParquet, nil
	default:
		return "", errors.New("output must be json or parquet")
	}
}

func parseBoolDefault(s string, def bool) (bool, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseBool(s)
}

type filenameParam struct {
	Filename string `validate:"required,max=128,printascii,excludesall=/\\"`
}

func parseFilename(c *fiber.Ctx) (string, error) {
	p := filenameParam{Filename: c.Params("filename")}
	if err := validate.Struct(p); err != nil {
		return "", errors.New("invalid checkpoint filename")
	}
	return p.Filename, nil
}

// stationsQuery holds query parameters for station-data requests.
type stationsQuery struct {
	Stations  []string  `validate:"required,min=1,dive,required"`
	From      time.Time `validate:"required"`
	To        time.Time `validate:"required,gtefield=From"`
	Variables []string  `validate:"required,min=1,dive,required"`
	Frequency string    `validate:"required"`
	Format    string    `validate:"required"`
	Output    string    `validate:"oneof=json parquet"`
}

func (q *stationsQuery) bind(c *fiber.Ctx) error {
	q.Stations = common.SplitList(c.Query("stations"))
	q.Variables = common.SplitList(c.Query("variables"))
	q.Frequency = c.Query("frequency", "daily")
	q.Format = c.Query("format", "json")

	output, err := parseOutput(c.Query("output"))
	if err != nil {
		return err
	}
	q.Output = output

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}
	if q.From, err = weather.ParseTimestamp(fromStr); err != nil {
		return err
	}
	if q.To, err = weather.ParseTimestamp(toStr); err != nil {
		return err
	}

	return validate.Struct(q)
}

func (q *stationsQuery) toStationQuery() weather.StationQuery {
	return weather.StationQuery{
		Stations:    q.Stations,
		DateFrom:    q.From,
		DateTo:      q.To,
		Variables:   q.Variables,
		Frequencies: q.Frequency,
		Format:      q.Format,
	}
}
