package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestReadCustomers(t *testing.T) {
	path := writeFile(t, "customers.csv",
		"customer_id,first_name,last_name,email,phone,address,city,state,zip_code,country,registration_date,customer_segment,is_active\n"+
			"1,Ada,Smith,ada@example.com,555-0101,1 Main St,Portland,OR,97201,USA,2023-04-01,Premium,True\n"+
			"2,Ben,Jones,ben@example.com,555-0102,2 Oak Ave,Austin,TX,78701,USA,2024-01-15 10:30:00,Standard,False\n")

	customers, skipped, err := ReadCustomers(path)
	if err != nil {
		t.Fatalf("ReadCustomers failed: %v", err)
	}
	if skipped != 0 {
		t.Errorf("Expected 0 skipped rows, got %d", skipped)
	}
	if len(customers) != 2 {
		t.Fatalf("Expected 2 customers, got %d", len(customers))
	}

	c := customers[0]
	if c.CustomerID != 1 || c.FirstName != "Ada" || c.Segment != "Premium" || !c.IsActive {
		t.Errorf("Unexpected first customer: %+v", c)
	}
	want := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	if !c.RegistrationDate.Equal(want) {
		t.Errorf("Expected registration date %v, got %v", want, c.RegistrationDate)
	}
	if customers[1].IsActive {
		t.Error("Expected second customer inactive")
	}
}

func TestReadCustomersSkipsMalformedRows(t *testing.T) {
	path := writeFile(t, "customers.csv",
		"customer_id,first_name,last_name,email,phone,address,city,state,zip_code,country,registration_date,customer_segment,is_active\n"+
			"1,Ada,Smith,ada@example.com,555-0101,1 Main St,Portland,OR,97201,USA,2023-04-01,Premium,True\n"+
			"not-a-number,Eve,Kim,eve@example.com,555-0103,3 Elm St,Denver,CO,80201,USA,2023-05-01,Basic,True\n"+
			"3,Cal,Lee,cal@example.com,555-0104,4 Fir Rd,Boise,ID,83701,USA,yesterday,Basic,True\n"+
			"4,Dot,Wu,dot@example.com,555-0105,5 Ash Ct,Reno,NV,89501\n")

	customers, skipped, err := ReadCustomers(path)
	if err != nil {
		t.Fatalf("ReadCustomers failed: %v", err)
	}
	if len(customers) != 1 {
		t.Errorf("Expected 1 good customer, got %d", len(customers))
	}
	if skipped != 3 {
		t.Errorf("Expected 3 skipped rows, got %d", skipped)
	}
}

func TestReadCustomersHeaderMismatch(t *testing.T) {
	path := writeFile(t, "customers.csv",
		"id,first_name,last_name,email,phone,address,city,state,zip_code,country,registration_date,customer_segment,is_active\n")

	if _, _, err := ReadCustomers(path); err == nil {
		t.Error("Expected error for header mismatch, got nil")
	}
}

func TestReadProducts(t *testing.T) {
	path := writeFile(t, "products.csv",
		"product_id,product_name,category,sub_category,brand,price,cost,stock_quantity,supplier_id,created_date\n"+
			"10,Trail Lamp,Home & Garden,Home & Garden - Lighting,Acme,49.99,20.00,150,3,2022-06-15\n")

	products, skipped, err := ReadProducts(path)
	if err != nil {
		t.Fatalf("ReadProducts failed: %v", err)
	}
	if skipped != 0 || len(products) != 1 {
		t.Fatalf("Expected 1 product and 0 skipped, got %d/%d", len(products), skipped)
	}
	p := products[0]
	if p.ProductID != 10 || p.Price != 49.99 || p.Cost != 20.00 || p.Category != "Home & Garden" {
		t.Errorf("Unexpected product: %+v", p)
	}
}

func TestReadOrdersAndItems(t *testing.T) {
	ordersPath := writeFile(t, "orders.csv",
		"order_id,customer_id,order_date,order_status,payment_method,shipping_method,shipping_cost,tax_amount,discount_amount,total_amount,created_at,updated_at\n"+
			"100,1,2024-03-10 14:22:05,Completed,Credit Card,Standard,5.99,4.00,0,59.99,2024-03-10 14:22:05,2024-03-10 14:22:05\n")

	orders, skipped, err := ReadOrders(ordersPath)
	if err != nil {
		t.Fatalf("ReadOrders failed: %v", err)
	}
	if skipped != 0 || len(orders) != 1 {
		t.Fatalf("Expected 1 order and 0 skipped, got %d/%d", len(orders), skipped)
	}
	o := orders[0]
	if o.OrderID != 100 || o.Status != "Completed" || o.TotalAmount != 59.99 {
		t.Errorf("Unexpected order: %+v", o)
	}
	if o.OrderDate.Hour() != 14 {
		t.Errorf("Expected order hour 14, got %d", o.OrderDate.Hour())
	}

	itemsPath := writeFile(t, "order_items.csv",
		"order_item_id,order_id,product_id,quantity,unit_price,line_total,discount_amount\n"+
			"100_1,100,10,2,25.00,50.00,0\n"+
			",100,10,1,25.00,25.00,0\n")

	items, skipped, err := ReadOrderItems(itemsPath)
	if err != nil {
		t.Fatalf("ReadOrderItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(items))
	}
	if skipped != 1 {
		t.Errorf("Expected 1 skipped row (empty business id), got %d", skipped)
	}
	if items[0].OrderItemID != "100_1" || items[0].Quantity != 2 {
		t.Errorf("Unexpected item: %+v", items[0])
	}
}
