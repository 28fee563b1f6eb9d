package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/babui-rent/babui/internal/domain"
	"github.com/babui-rent/babui/internal/handler"
	"github.com/babui-rent/babui/internal/service"
)

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// do sends a request and decodes a 2xx JSON body into out when out is non-nil
func (c *apiClient) do(method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func listProperties(api *apiClient, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("property list", flag.ContinueOnError)
	typ := fs.String("type", "", "only this property type")
	if err := fs.Parse(args); err != nil {
		return err
	}

	query := url.Values{}
	if *typ != "" {
		query.Set("type", *typ)
	}
	var props []domain.Property
	if err := api.do(http.MethodGet, "/api/properties", query, nil, &props); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tPRICE\tAREA\tLOCATION\tTITLE")
	for _, p := range props {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Type, formatPrice(p), p.Location.Area, pin(p.Location), p.Title)
	}
	return w.Flush()
}

func getProperty(api *apiClient, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: babui property get <id>")
	}
	var p domain.Property
	if err := api.do(http.MethodGet, "/api/properties/"+url.PathEscape(args[0]), nil, nil, &p); err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func addProperty(api *apiClient, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("property add", flag.ContinueOnError)
	id := fs.String("id", "", "property id (generated when empty)")
	title := fs.String("title", "", "listing title")
	typ := fs.String("type", string(domain.TypeApartment), "property type")
	price := fs.Float64("price", 0, "monthly rent")
	bedrooms := fs.Float64("bedrooms", 0, "bedrooms")
	address := fs.String("address", "", "street address")
	area := fs.String("area", "", "neighbourhood")
	city := fs.String("city", "dhaka", "city")
	lat := fs.String("lat", "", "latitude")
	lng := fs.String("lng", "", "longitude")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p := domain.Property{
		ID:        *id,
		Title:     *title,
		Type:      domain.PropertyType(*typ),
		Price:     *price,
		Bedrooms:  *bedrooms,
		Available: true,
		Location:  domain.Location{Address: *address, Area: *area, City: *city},
	}
	if *lat != "" || *lng != "" {
		c, err := parseLatLng(*lat, *lng)
		if err != nil {
			return err
		}
		p.Location.Coordinates = &c
	}

	var created domain.Property
	if err := api.do(http.MethodPost, "/api/properties", nil, p, &created); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Property added: %s\n", created.ID)
	return nil
}

func deleteProperty(api *apiClient, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: babui property delete <id>")
	}
	if err := api.do(http.MethodDelete, "/api/properties/"+url.PathEscape(args[0]), nil, nil, nil); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Property deleted: %s\n", args[0])
	return nil
}

func nearby(api *apiClient, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("nearby", flag.ContinueOnError)
	lat := fs.String("lat", "", "center latitude")
	lng := fs.String("lng", "", "center longitude")
	area := fs.String("area", "", "center on a named area instead")
	radius := fs.String("radius", "", "radius in km (default 5)")
	sorted := fs.Bool("sort", false, "nearest first")
	if err := fs.Parse(args); err != nil {
		return err
	}

	query := scopeQuery(*lat, *lng, *area, *radius)
	if *sorted {
		query.Set("sort", "distance")
	}
	var resp handler.NearbyResponse
	if err := api.do(http.MethodGet, "/api/properties/nearby", query, nil, &resp); err != nil {
		return err
	}

	fmt.Fprintf(out, "%d properties within %g km of %.4f, %.4f\n", resp.Count, resp.RadiusKm, resp.Center.Lat, resp.Center.Lng)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDISTANCE\tTYPE\tPRICE\tTITLE")
	for _, r := range resp.Results {
		fmt.Fprintf(w, "%s\t%.2f km\t%s\t%s\t%s\n", r.Property.ID, r.DistanceKm, r.Property.Type, formatPrice(r.Property), r.Property.Title)
	}
	return w.Flush()
}

func clusters(api *apiClient, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("clusters", flag.ContinueOnError)
	lat := fs.String("lat", "", "restrict to a circle around this latitude")
	lng := fs.String("lng", "", "restrict to a circle around this longitude")
	area := fs.String("area", "", "restrict to a circle around a named area")
	radius := fs.String("radius", "", "radius in km")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var markers []handler.ClusterMarker
	if err := api.do(http.MethodGet, "/api/properties/clusters", scopeQuery(*lat, *lng, *area, *radius), nil, &markers); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tCOUNT\tCENTER\tPRICE RANGE")
	for _, m := range markers {
		fmt.Fprintf(w, "%s\t%d\t%.5f, %.5f\t%.0f-%.0f\n", m.Key, m.Count, m.Center.Lat, m.Center.Lng, m.MinPrice, m.MaxPrice)
	}
	return w.Flush()
}

func reverseGeocode(api *apiClient, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("geocode reverse", flag.ContinueOnError)
	lat := fs.String("lat", "", "latitude")
	lng := fs.String("lng", "", "longitude")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := parseLatLng(*lat, *lng); err != nil {
		return err
	}

	var res service.AddressResult
	query := url.Values{"lat": {*lat}, "lng": {*lng}}
	if err := api.do(http.MethodGet, "/api/geocode/reverse", query, nil, &res); err != nil {
		return err
	}
	if !res.Resolved {
		fmt.Fprintf(out, "%s (unresolved)\n", res.Address)
		return nil
	}
	fmt.Fprintln(out, res.Address)
	return nil
}

func searchPlaces(api *apiClient, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("geocode search", flag.ContinueOnError)
	limit := fs.Int("limit", 5, "maximum results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	q := strings.Join(fs.Args(), " ")
	if q == "" {
		return fmt.Errorf("usage: babui geocode search [-limit n] <query>")
	}

	var candidates []domain.GeocodeCandidate
	query := url.Values{"q": {q}, "limit": {strconv.Itoa(*limit)}}
	if err := api.do(http.MethodGet, "/api/geocode/search", query, nil, &candidates); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tLAT\tLNG\tSOURCE")
	for _, c := range candidates {
		fmt.Fprintf(w, "%s\t%.5f\t%.5f\t%s\n", c.DisplayName, c.Coordinates.Lat, c.Coordinates.Lng, c.Source)
	}
	return w.Flush()
}

func scopeQuery(lat, lng, area, radius string) url.Values {
	query := url.Values{}
	if area != "" {
		query.Set("area", area)
	} else if lat != "" || lng != "" {
		query.Set("lat", lat)
		query.Set("lng", lng)
	}
	if radius != "" {
		query.Set("radius", radius)
	}
	return query
}

func parseLatLng(lat, lng string) (domain.Coordinates, error) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("invalid -lat %q", lat)
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("invalid -lng %q", lng)
	}
	c := domain.Coordinates{Lat: la, Lng: ln}
	if !c.Valid() {
		return domain.Coordinates{}, domain.ErrInvalidCoordinate
	}
	return c, nil
}

func formatPrice(p domain.Property) string {
	return fmt.Sprintf("%.0f %s", p.Price, p.Currency)
}

func pin(l domain.Location) string {
	if !l.Locatable() {
		return "-"
	}
	return fmt.Sprintf("%.4f, %.4f", l.Coordinates.Lat, l.Coordinates.Lng)
}
