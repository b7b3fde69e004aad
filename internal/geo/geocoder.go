package geo

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"

	"ai-trip-planner/internal/poi"
)

// Resolver converts free-form location text into coordinates. Implementations
// must not fail a candidate outright: on lookup failure they return ok=false
// and the caller decides what to do with the un-geocoded POI.
type Resolver interface {
	Resolve(ctx context.Context, locationText string) (poi.Coordinates, bool)
}

// jitterDegrees bounds the deterministic offset applied to city centroids so
// that multiple POIs in the same city do not collapse onto a single point.
const jitterDegrees = 0.015

// Approximate city centres for offline geocoding.
var cityCoords = map[string]poi.Coordinates{
	// Asia
	"tokyo":        {Lat: 35.6762, Lng: 139.6503},
	"東京":           {Lat: 35.6762, Lng: 139.6503},
	"osaka":        {Lat: 34.6937, Lng: 135.5023},
	"大阪":           {Lat: 34.6937, Lng: 135.5023},
	"kyoto":        {Lat: 35.0116, Lng: 135.7681},
	"京都":           {Lat: 35.0116, Lng: 135.7681},
	"beijing":      {Lat: 39.9042, Lng: 116.4074},
	"北京":           {Lat: 39.9042, Lng: 116.4074},
	"shanghai":     {Lat: 31.2304, Lng: 121.4737},
	"上海":           {Lat: 31.2304, Lng: 121.4737},
	"chengdu":      {Lat: 30.5728, Lng: 104.0668},
	"成都":           {Lat: 30.5728, Lng: 104.0668},
	"chongqing":    {Lat: 29.5630, Lng: 106.5516},
	"重庆":           {Lat: 29.5630, Lng: 106.5516},
	"guangzhou":    {Lat: 23.1291, Lng: 113.2644},
	"广州":           {Lat: 23.1291, Lng: 113.2644},
	"shenzhen":     {Lat: 22.5431, Lng: 114.0579},
	"深圳":           {Lat: 22.5431, Lng: 114.0579},
	"hangzhou":     {Lat: 30.2741, Lng: 120.1551},
	"杭州":           {Lat: 30.2741, Lng: 120.1551},
	"xian":         {Lat: 34.3416, Lng: 108.9398},
	"西安":           {Lat: 34.3416, Lng: 108.9398},
	"singapore":    {Lat: 1.3521, Lng: 103.8198},
	"bangkok":      {Lat: 13.7563, Lng: 100.5018},
	"seoul":        {Lat: 37.5665, Lng: 126.9780},
	"서울":           {Lat: 37.5665, Lng: 126.9780},
	"hong kong":    {Lat: 22.3193, Lng: 114.1694},
	"香港":           {Lat: 22.3193, Lng: 114.1694},
	"taipei":       {Lat: 25.0330, Lng: 121.5654},
	"台北":           {Lat: 25.0330, Lng: 121.5654},
	"bali":         {Lat: -8.3405, Lng: 115.0920},
	"kuala lumpur": {Lat: 3.1390, Lng: 101.6869},
	// Europe
	"london":    {Lat: 51.5074, Lng: -0.1278},
	"paris":     {Lat: 48.8566, Lng: 2.3522},
	"rome":      {Lat: 41.9028, Lng: 12.4964},
	"barcelona": {Lat: 41.3851, Lng: 2.1734},
	"amsterdam": {Lat: 52.3676, Lng: 4.9041},
	"berlin":    {Lat: 52.5200, Lng: 13.4050},
	"vienna":    {Lat: 48.2082, Lng: 16.3738},
	"prague":    {Lat: 50.0755, Lng: 14.4378},
	"lisbon":    {Lat: 38.7223, Lng: -9.1393},
	"istanbul":  {Lat: 41.0082, Lng: 28.9784},
	// Americas
	"new york":       {Lat: 40.7128, Lng: -74.0060},
	"los angeles":    {Lat: 34.0522, Lng: -118.2437},
	"chicago":        {Lat: 41.8781, Lng: -87.6298},
	"miami":          {Lat: 25.7617, Lng: -80.1918},
	"san francisco":  {Lat: 37.7749, Lng: -122.4194},
	"las vegas":      {Lat: 36.1699, Lng: -115.1398},
	"toronto":        {Lat: 43.6532, Lng: -79.3832},
	"vancouver":      {Lat: 49.2827, Lng: -123.1207},
	"mexico city":    {Lat: 19.4326, Lng: -99.1332},
	"rio de janeiro": {Lat: -22.9068, Lng: -43.1729},
	// US states / regions
	"alaska":     {Lat: 64.2008, Lng: -153.4937},
	"hawaii":     {Lat: 20.7967, Lng: -156.3319},
	"florida":    {Lat: 27.9944, Lng: -81.7603},
	"california": {Lat: 36.7783, Lng: -119.4179},
	"texas":      {Lat: 31.9686, Lng: -99.9018},
	"colorado":   {Lat: 39.5501, Lng: -105.7821},
	// Oceania
	"sydney":    {Lat: -33.8688, Lng: 151.2093},
	"melbourne": {Lat: -37.8136, Lng: 144.9631},
	"auckland":  {Lat: -36.8485, Lng: 174.7633},
	// Middle East / Africa
	"dubai":     {Lat: 25.2048, Lng: 55.2708},
	"cairo":     {Lat: 30.0444, Lng: 31.2357},
	"cape town": {Lat: -33.9249, Lng: 18.4241},
}

// sortedCities holds the lookup keys in a fixed order so that text matching
// two city names still resolves the same way every run.
var sortedCities = func() []string {
	keys := make([]string, 0, len(cityCoords))
	for k := range cityCoords {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}()

// CityGeocoder resolves location text against a fixed city-centroid table and
// spreads results with a jitter derived from the text itself, so the same
// input always resolves to the same point.
type CityGeocoder struct{}

// NewCityGeocoder returns the offline table-backed geocoder.
func NewCityGeocoder() *CityGeocoder {
	return &CityGeocoder{}
}

// Resolve matches any known city name inside locationText. Unknown locations
// return ok=false so the caller can skip routing for that POI rather than
// placing it in the wrong city.
func (g *CityGeocoder) Resolve(_ context.Context, locationText string) (poi.Coordinates, bool) {
	lower := strings.ToLower(locationText)
	for _, city := range sortedCities {
		if strings.Contains(lower, city) {
			center := cityCoords[city]
			dLat, dLng := jitter(locationText)
			return poi.Coordinates{Lat: center.Lat + dLat, Lng: center.Lng + dLng}, true
		}
	}
	return poi.Coordinates{}, false
}

// jitter maps the FNV-64a hash of the text to two offsets in
// [-jitterDegrees, jitterDegrees).
func jitter(text string) (dLat, dLng float64) {
	h := fnv.New64a()
	h.Write([]byte(text))
	sum := h.Sum64()

	latBits := sum & 0xFFFF
	lngBits := (sum >> 16) & 0xFFFF
	dLat = (float64(latBits)/65535.0*2 - 1) * jitterDegrees
	dLng = (float64(lngBits)/65535.0*2 - 1) * jitterDegrees
	return dLat, dLng
}
